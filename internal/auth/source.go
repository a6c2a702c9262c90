package auth

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// Source is a named key/value provider consulted for credentials.
// Lookup returns ok=false for missing or blank values.
type Source interface {
	Lookup(name string) (string, bool)
	Name() string
}

// EnvSource reads the process environment.
type EnvSource struct{}

func (EnvSource) Lookup(name string) (string, bool) {
	v, ok := envLookup(name)
	return clean(v, ok)
}

func (EnvSource) Name() string { return "Environment Variable" }

// KeychainSource reads the OS keychain under the cattlelens service.
type KeychainSource struct{}

func (KeychainSource) Lookup(name string) (string, bool) {
	v, err := keyring.Get(serviceName, accountFor(name))
	return clean(v, err == nil)
}

func (KeychainSource) Name() string { return "Keychain" }

// DotenvSource serves values parsed from a .env file.
type DotenvSource struct {
	path   string
	values map[string]string
}

// LoadDotenv parses path without touching the process environment.
func LoadDotenv(path string) (*DotenvSource, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return &DotenvSource{path: path, values: values}, nil
}

func (d *DotenvSource) Lookup(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.values[name]
	return clean(v, ok)
}

func (d *DotenvSource) Name() string { return "Env File (" + d.path + ")" }

// MapSource is a static source, mostly useful in tests and embedding.
type MapSource map[string]string

func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return clean(v, ok)
}

func (MapSource) Name() string { return "Static" }

// Chain consults sources in order; the first non-empty value wins.
type Chain []Source

func (c Chain) Lookup(name string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, s := range c {
		if s != nil {
			names = append(names, s.Name())
		}
	}
	return strings.Join(names, " > ")
}

func clean(v string, ok bool) (string, bool) {
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
