package gemini

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeImage_RoundTrip(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	encoded, err := EncodeImage(image)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded, image) {
		t.Fatalf("round trip mismatch: %v vs %v", decoded, image)
	}
}

func TestEncodeImage_Empty(t *testing.T) {
	if _, err := EncodeImage(nil); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestReadImage(t *testing.T) {
	if _, err := ReadImage(nil); err == nil {
		t.Fatalf("expected error for nil reader")
	}
	if _, err := ReadImage(failingReader{}); err == nil {
		t.Fatalf("expected error for failing reader")
	}
	got, err := ReadImage(strings.NewReader("abc"))
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadImage = (%q, %v)", got, err)
	}
}

func TestFormatInstruction(t *testing.T) {
	got := FormatInstruction("Be precise.", "What breed?")
	want := "SYSTEM INSTRUCTION: Be precise.\n\nUSER QUERY: What breed?"
	if got != want {
		t.Fatalf("FormatInstruction = %q, want %q", got, want)
	}
}

func TestNewRequest_Shape(t *testing.T) {
	req, err := NewRequest([]byte("img"), "", "sys", "query")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"contents":[{"role":"user","parts":[{"inlineData":{"mimeType":"image/jpeg","data":"aW1n"}},{"text":"SYSTEM INSTRUCTION: sys\n\nUSER QUERY: query"}]}]}`
	if string(raw) != want {
		t.Fatalf("payload mismatch\n got: %s\nwant: %s", raw, want)
	}
	for _, forbidden := range []string{"model", "generationConfig", "config", "systemInstruction"} {
		if strings.Contains(string(raw), `"`+forbidden+`"`) {
			t.Fatalf("payload must not contain %q: %s", forbidden, raw)
		}
	}
}

func TestNewRequest_Deterministic(t *testing.T) {
	a, _ := NewRequest([]byte("same"), "image/png", "s", "q")
	b, _ := NewRequest([]byte("same"), "image/png", "s", "q")
	ra, _ := json.Marshal(a)
	rb, _ := json.Marshal(b)
	if !bytes.Equal(ra, rb) {
		t.Fatalf("expected identical payloads")
	}
	if a.Contents[0].Parts[0].InlineData.MIMEType != "image/png" {
		t.Fatalf("explicit mime type not kept")
	}
}

func TestNewRequest_EncodingFailure(t *testing.T) {
	if _, err := NewRequest(nil, "", "s", "q"); err == nil {
		t.Fatalf("expected encoding error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }
