package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/prompts"
)

func TestRun_SequentialWithMixedOutcomes(t *testing.T) {
	mock := &gemini.MockClient{Outcomes: []gemini.Outcome{
		{Success: true, Analysis: "Gir", ModelUsed: "m", TokensUsed: 30, Attempts: 1},
		{Success: false, Error: "All attempts failed. Last error: 500", Kind: "transient", Attempts: 3},
		{Success: true, Analysis: "Murrah", ModelUsed: "m", TokensUsed: 12, Attempts: 1, Cached: true},
	}}
	inputs := []Input{BytesInput("a.jpg", []byte("a")), BytesInput("b.jpg", []byte("b")), BytesInput("c.jpg", []byte("c"))}

	var events []string
	report, err := Run(context.Background(), mock, inputs, Config{
		Model: "m",
		Task:  prompts.TypeClassification,
		OnProgress: func(p Progress) {
			events = append(events, fmt.Sprintf("%d/%d %s %s", p.Index+1, p.Total, p.Name, p.State))
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 || report.Cached != 1 || report.TotalTokens != 42 {
		t.Fatalf("report counts = %+v", report)
	}
	if report.Status != StatusPartialSuccess || report.RunID == "" || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("report metadata = %+v", report)
	}
	want := []string{
		"1/3 a.jpg started", "1/3 a.jpg completed",
		"2/3 b.jpg started", "2/3 b.jpg failed",
		"3/3 c.jpg started", "3/3 c.jpg completed",
	}
	if strings.Join(events, "|") != strings.Join(want, "|") {
		t.Fatalf("events = %v", events)
	}
	call := mock.Calls[0]
	if call.SystemPrompt != prompts.SystemPrompt(prompts.TypeClassification) || string(call.Image) != "a" {
		t.Fatalf("first call = %+v", call)
	}
}

func TestRun_LimitsImages(t *testing.T) {
	mock := &gemini.MockClient{}
	var inputs []Input
	for i := 0; i < 12; i++ {
		inputs = append(inputs, BytesInput(fmt.Sprintf("%02d.jpg", i), []byte{byte(i + 1)}))
	}
	report, err := Run(context.Background(), mock, inputs, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.CallCount() != MaxImages || len(report.Results) != MaxImages {
		t.Fatalf("calls = %d results = %d", mock.CallCount(), len(report.Results))
	}
	if len(report.Skipped) != 2 || report.Skipped[0] != "10.jpg" {
		t.Fatalf("skipped = %v", report.Skipped)
	}
	if report.Task != prompts.DefaultTask || report.Model != gemini.DefaultModel {
		t.Fatalf("defaults not applied: %+v", report)
	}

	mock = &gemini.MockClient{}
	Run(context.Background(), mock, inputs, Config{MaxImages: 3})
	if mock.CallCount() != 3 {
		t.Fatalf("calls = %d, want 3", mock.CallCount())
	}
}

func TestRun_LoadFailureSkipsAnalyzer(t *testing.T) {
	mock := &gemini.MockClient{}
	missing := FileInput(filepath.Join(t.TempDir(), "missing.jpg"))
	broken := Input{Name: "broken.jpg", Load: func() ([]byte, error) { return nil, errors.New("truncated") }}

	report, err := Run(context.Background(), mock, []Input{missing, broken}, Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("analyzer must not be called for unreadable images")
	}
	if report.Status != StatusFailure || report.Failed != 2 {
		t.Fatalf("report = %+v", report)
	}
	for _, r := range report.Results {
		if r.Kind != "encoding" || !strings.HasPrefix(r.Error, "Image encoding failed") || r.Attempts != 0 {
			t.Fatalf("result = %+v", r)
		}
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &gemini.MockClient{}
	inputs := []Input{BytesInput("a", []byte("a")), BytesInput("b", []byte("b"))}

	report, err := Run(ctx, mock, inputs, Config{OnProgress: func(p Progress) {
		if p.State == StateCompleted {
			cancel()
		}
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if mock.CallCount() != 1 || len(report.Results) != 1 {
		t.Fatalf("calls = %d results = %d", mock.CallCount(), len(report.Results))
	}
}

func TestDemoAnalyzer(t *testing.T) {
	demo := NewDemoAnalyzer(prompts.BreedRecognition, 7)
	report, err := Run(context.Background(), demo, []Input{BytesInput("cow.jpg", []byte("x"))}, Config{Task: prompts.BreedRecognition})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := report.Results[0]
	if out.Analysis != "Simulated analysis for cow.jpg (task: breed_recognition)" {
		t.Fatalf("analysis = %q", out.Analysis)
	}
	if out.TokensUsed < 10 || out.TokensUsed > 50 {
		t.Fatalf("tokens = %d, want 10..50", out.TokensUsed)
	}

	var zero DemoAnalyzer
	if got := zero.Analyze(context.Background(), []byte("abc"), "", "", gemini.AnalyzeOptions{}); !got.Success || got.ModelUsed != gemini.DefaultModel {
		t.Fatalf("zero-value demo outcome = %+v", got)
	}
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	report := &Report{RunID: "run-1", Model: "m", Task: "t"}
	report.add(ImageResult{Name: "a.jpg", Outcome: gemini.Outcome{Success: true, Analysis: "Gir", TokensUsed: 5}})
	report.finish()

	path := DefaultReportPath(dir, report)
	written, err := SaveReport(path, report, false)
	if err != nil || written != path {
		t.Fatalf("SaveReport = (%q, %v)", written, err)
	}
	second, err := SaveReport(path, report, false)
	if err != nil || second == path {
		t.Fatalf("second SaveReport should avoid collision: (%q, %v)", second, err)
	}
	again, err := SaveReport(path, report, true)
	if err != nil || again != path {
		t.Fatalf("overwrite SaveReport = (%q, %v)", again, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	results := decoded["results"].([]any)
	first := results[0].(map[string]any)
	if first["name"] != "a.jpg" || first["analysis"] != "Gir" || first["success"] != true {
		t.Fatalf("flattened result = %v", first)
	}
	if _, ok := first["error"]; ok {
		t.Fatalf("successful result must not carry an error field")
	}
}
