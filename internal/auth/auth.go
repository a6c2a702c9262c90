package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	serviceName = "cattlelens"

	// KeyVar names the API key in every Source.
	KeyVar = "GEMINI_API_KEY"
	// EndpointVar names an optional endpoint override.
	EndpointVar = "GEMINI_API_URL"
)

// accountFor maps a variable name to its keychain account,
// e.g. GEMINI_API_KEY -> gemini-api-key.
func accountFor(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// SaveKey stores the Gemini API key in the OS keychain.
func SaveKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("refusing to store an empty key")
	}
	return keyring.Set(serviceName, accountFor(KeyVar), key)
}

// DeleteKey removes the Gemini API key from the OS keychain.
func DeleteKey() error {
	return keyring.Delete(serviceName, accountFor(KeyVar))
}

// HasKey reports whether the keychain holds a non-empty Gemini API key.
func HasKey() bool {
	key, err := keyring.Get(serviceName, accountFor(KeyVar))
	return err == nil && strings.TrimSpace(key) != ""
}

// IsNotFound reports whether err means the keychain had no entry.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrNotFound)
}

// PromptForAPIKey securely prompts the user for their API key.
func PromptForAPIKey(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

// GetEnvKey retrieves the key from environment variables only.
func GetEnvKey() (string, bool) {
	return EnvSource{}.Lookup(KeyVar)
}

// ResolveKey looks the key up in src and reports which source answered.
func ResolveKey(src Source) (key string, from string) {
	if src == nil {
		return "", ""
	}
	if c, ok := src.(Chain); ok {
		for _, s := range c {
			if s == nil {
				continue
			}
			if v, ok := s.Lookup(KeyVar); ok {
				return v, s.Name()
			}
		}
		return "", ""
	}
	if v, ok := src.Lookup(KeyVar); ok {
		return v, src.Name()
	}
	return "", ""
}

// envLookup is swapped in tests.
var envLookup = os.LookupEnv
