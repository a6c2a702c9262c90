package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oukeidos/cattlelens/internal/gemini"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetPut(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if e, err := s.Get(ctx, "missing"); err != nil || e != nil {
		t.Fatalf("Get(missing) = (%v, %v), want (nil, nil)", e, err)
	}
	if err := s.Put(ctx, "fp", Entry{Analysis: "Gir", ModelUsed: "m", TokensUsed: 12}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "fp", Entry{Analysis: "Sahiwal", ModelUsed: "m", TokensUsed: 13}); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	e, err := s.Get(ctx, "fp")
	if err != nil || e == nil {
		t.Fatalf("Get = (%v, %v)", e, err)
	}
	if e.Analysis != "Sahiwal" || e.TokensUsed != 13 || e.CreatedAt.IsZero() {
		t.Fatalf("entry = %+v", e)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("ab"), "c", "s", "q")
	b := Fingerprint([]byte("a"), "bc", "s", "q")
	if a == b {
		t.Fatalf("length prefix should prevent boundary collisions")
	}
	if a != Fingerprint([]byte("ab"), "c", "s", "q") {
		t.Fatalf("fingerprint must be deterministic")
	}
}

func TestAnalyzer_CachesOnlySuccess(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	inner := &gemini.MockClient{Outcomes: []gemini.Outcome{
		{Success: false, Error: "boom", Attempts: 3},
		{Success: true, Analysis: "Murrah", ModelUsed: "m", TokensUsed: 40, Attempts: 1},
	}}
	a := NewAnalyzer(inner, s)
	image := []byte("jpeg")

	if out := a.Analyze(ctx, image, "m", "sys", gemini.AnalyzeOptions{}); out.Success {
		t.Fatalf("first call should fail")
	}
	out := a.Analyze(ctx, image, "m", "sys", gemini.AnalyzeOptions{})
	if !out.Success || out.Cached {
		t.Fatalf("second call should reach the inner analyzer: %+v", out)
	}
	out = a.Analyze(ctx, image, "m", "sys", gemini.AnalyzeOptions{})
	if !out.Success || !out.Cached || out.Analysis != "Murrah" || out.TokensUsed != 0 {
		t.Fatalf("third call should be a cache hit: %+v", out)
	}
	if inner.CallCount() != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.CallCount())
	}

	// A different prompt is a different request.
	a.Analyze(ctx, image, "m", "other", gemini.AnalyzeOptions{})
	if inner.CallCount() != 3 {
		t.Fatalf("inner calls = %d, want 3", inner.CallCount())
	}
}

func TestAnalyzer_NilStorePassesThrough(t *testing.T) {
	inner := &gemini.MockClient{}
	a := NewAnalyzer(inner, nil)
	a.Analyze(context.Background(), []byte("x"), "m", "s", gemini.AnalyzeOptions{})
	a.Analyze(context.Background(), []byte("x"), "m", "s", gemini.AnalyzeOptions{})
	if inner.CallCount() != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.CallCount())
	}
}
