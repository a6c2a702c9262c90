package prompts

import (
	"strings"
	"testing"
)

func TestSystemPrompt(t *testing.T) {
	breed := SystemPrompt(BreedRecognition)
	if !strings.HasPrefix(breed, "You are an expert veterinarian") {
		t.Fatalf("breed prompt not dedented: %q", breed[:40])
	}
	if !strings.Contains(breed, "\n- Murrah, Nili-Ravi") {
		t.Fatalf("list indentation should be stripped")
	}
	atc := SystemPrompt("Type-Classification")
	if !strings.Contains(atc, "Rashtriya Gokul Mission") {
		t.Fatalf("type classification prompt not resolved")
	}
	if !strings.Contains(atc, "\n   - Body Length") {
		t.Fatalf("nested list indentation should be preserved relative to its parent")
	}
	if got := SystemPrompt("weight_estimation"); got != FallbackPrompt {
		t.Fatalf("unknown task prompt = %q", got)
	}
}

func TestTasks(t *testing.T) {
	list := Tasks()
	if len(list) != 2 || list[0].ID != BreedRecognition || list[1].ID != TypeClassification {
		t.Fatalf("Tasks() = %+v", list)
	}
	if !IsKnown(DefaultTask) || IsKnown("") {
		t.Fatalf("IsKnown mismatch")
	}
}
