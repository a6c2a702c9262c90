package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestMapSource_TrimsAndRejectsBlank(t *testing.T) {
	src := MapSource{KeyVar: "  abc  ", EndpointVar: "   "}
	if v, ok := src.Lookup(KeyVar); !ok || v != "abc" {
		t.Fatalf("Lookup(key) = (%q, %v), want (abc, true)", v, ok)
	}
	if _, ok := src.Lookup(EndpointVar); ok {
		t.Fatalf("blank values must be treated as missing")
	}
	if _, ok := src.Lookup("MISSING"); ok {
		t.Fatalf("missing values must report ok=false")
	}
}

func TestEnvSource(t *testing.T) {
	prev := envLookup
	defer func() { envLookup = prev }()
	envLookup = func(name string) (string, bool) {
		if name == KeyVar {
			return "env-key\n", true
		}
		return "", false
	}

	if v, ok := (EnvSource{}).Lookup(KeyVar); !ok || v != "env-key" {
		t.Fatalf("EnvSource.Lookup = (%q, %v)", v, ok)
	}
	if v, ok := GetEnvKey(); !ok || v != "env-key" {
		t.Fatalf("GetEnvKey = (%q, %v)", v, ok)
	}
}

func TestKeychainSource(t *testing.T) {
	keyring.MockInit()

	if _, ok := (KeychainSource{}).Lookup(KeyVar); ok {
		t.Fatalf("expected empty keychain")
	}
	if HasKey() {
		t.Fatalf("HasKey should be false before save")
	}
	if err := SaveKey("  stored-key "); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if v, ok := (KeychainSource{}).Lookup(KeyVar); !ok || v != "stored-key" {
		t.Fatalf("KeychainSource.Lookup = (%q, %v)", v, ok)
	}
	if !HasKey() {
		t.Fatalf("HasKey should be true after save")
	}
	if err := DeleteKey(); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if err := DeleteKey(); !IsNotFound(err) {
		t.Fatalf("second DeleteKey err = %v, want not found", err)
	}
}

func TestSaveKey_RejectsEmpty(t *testing.T) {
	keyring.MockInit()
	if err := SaveKey("   "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestDotenvSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "GEMINI_API_KEY=file-key\nGEMINI_API_URL=https://example.test/v1/models/{model}:generateContent\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := LoadDotenv(path)
	if err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if v, ok := src.Lookup(KeyVar); !ok || v != "file-key" {
		t.Fatalf("Lookup key = (%q, %v)", v, ok)
	}
	if v, _ := src.Lookup(EndpointVar); v != "https://example.test/v1/models/{model}:generateContent" {
		t.Fatalf("Lookup endpoint = %q", v)
	}
	if _, ok := os.LookupEnv("GEMINI_API_KEY"); ok && os.Getenv("GEMINI_API_KEY") == "file-key" {
		t.Fatalf("dotenv source must not modify the process environment")
	}
}

func TestLoadDotenv_Missing(t *testing.T) {
	if _, err := LoadDotenv(filepath.Join(t.TempDir(), "nope.env")); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}

func TestChain_FirstHitWins(t *testing.T) {
	chain := Chain{MapSource{}, nil, MapSource{KeyVar: "second"}, MapSource{KeyVar: "third"}}
	if v, ok := chain.Lookup(KeyVar); !ok || v != "second" {
		t.Fatalf("Chain.Lookup = (%q, %v), want second", v, ok)
	}
	key, from := ResolveKey(chain)
	if key != "second" || from != "Static" {
		t.Fatalf("ResolveKey = (%q, %q)", key, from)
	}
	if key, from := ResolveKey(Chain{MapSource{}}); key != "" || from != "" {
		t.Fatalf("ResolveKey(empty) = (%q, %q)", key, from)
	}
	if key, _ := ResolveKey(nil); key != "" {
		t.Fatalf("ResolveKey(nil) = %q", key)
	}
}
