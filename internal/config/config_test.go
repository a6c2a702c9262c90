package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oukeidos/cattlelens/internal/gemini"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Default() {
		t.Fatalf("Load(\"\") = %+v, want defaults %+v", s, Default())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cattlelens.yaml")
	content := strings.Join([]string{
		"model: gemini-2.5-pro",
		"task: type_classification",
		"max_attempts: 5",
		"initial_backoff: 250ms",
		"backoff_multiplier: 3",
		"timeout: 30s",
		"cache_path: /tmp/cache.db",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CATTLELENS_MAX_ATTEMPTS", "4")
	t.Setenv("CATTLELENS_LISTEN", ":9090")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Model != "gemini-2.5-pro" || s.Task != "type_classification" {
		t.Fatalf("file values not applied: %+v", s)
	}
	if s.MaxAttempts != 4 || s.Listen != ":9090" {
		t.Fatalf("env overrides not applied: %+v", s)
	}
	if s.InitialBackoff != 250*time.Millisecond || s.Timeout != 30*time.Second || s.BackoffMultiplier != 3 {
		t.Fatalf("durations not decoded: %+v", s)
	}
	if s.UserQuery != gemini.DefaultUserQuery {
		t.Fatalf("default query lost: %q", s.UserQuery)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestNormalize(t *testing.T) {
	s := Default()
	s.MaxAttempts = 0
	s.MaxImages = 50
	s.BackoffMultiplier = 0.5
	s.Timeout = time.Hour
	s.UserQuery = " "
	s.Task = "Type-Classification"

	got, notes := s.Normalize()
	if got.MaxAttempts != 1 || got.MaxImages != MaxImages || got.BackoffMultiplier != 1 || got.Timeout != MaxTimeout {
		t.Fatalf("Normalize = %+v", got)
	}
	if got.UserQuery != gemini.DefaultUserQuery {
		t.Fatalf("blank query should fall back to default")
	}
	if got.Task != "type_classification" {
		t.Fatalf("task not canonicalized: %q", got.Task)
	}
	if len(notes) != 4 {
		t.Fatalf("notes = %v, want 4", notes)
	}
	if _, notes := Default().Normalize(); len(notes) != 0 {
		t.Fatalf("defaults should need no adjustment: %v", notes)
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := Default()
	bad.Task = "weight"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unknown task error")
	}
	bad = Default()
	bad.Timeout = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected timeout error")
	}
	bad = Default()
	bad.Model = "x:foo?alt=sse#"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid model error")
	}
	bad = Default()
	bad.LogLevel = "chatty"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected log level error")
	}
}

func TestAnalyzeOptions(t *testing.T) {
	s := Default()
	s.MaxAttempts = 7
	opts := s.AnalyzeOptions()
	if opts.MaxAttempts != 7 || opts.Timeout != gemini.DefaultTimeout || opts.UserQuery != gemini.DefaultUserQuery {
		t.Fatalf("AnalyzeOptions = %+v", opts)
	}
}

func TestAnalyzeOptions_ZeroBackoffRetriesImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	s := Default()
	s.InitialBackoff = 0
	s.MaxAttempts = 3
	s, _ = s.Normalize()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	opts := s.AnalyzeOptions()
	if opts.InitialBackoff != gemini.NoBackoff {
		t.Fatalf("InitialBackoff = %v, want NoBackoff", opts.InitialBackoff)
	}

	client, err := gemini.NewClient(gemini.Config{APIKey: "k", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	start := time.Now()
	out := client.Analyze(context.Background(), []byte("img"), "", "sys", opts)
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Fatalf("retries waited %v, want no backoff", elapsed)
	}
	if n := atomic.LoadInt32(&calls); out.Success || out.Attempts != 3 || n != 3 {
		t.Fatalf("outcome = %+v, calls = %d", out, n)
	}
}
