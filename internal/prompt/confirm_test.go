package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestConfirm_NonInteractive(t *testing.T) {
	c := Confirmer{In: bytes.NewBufferString("y\n"), IsInteractive: func() bool { return false }}
	ok, err := c.ConfirmOverwrite("report.json", false)
	if !errors.Is(err, ErrNonInteractive) || ok {
		t.Fatalf("ConfirmOverwrite = (%v, %v), want non-interactive error", ok, err)
	}
}

func TestConfirm_Force(t *testing.T) {
	c := Confirmer{In: bytes.NewBufferString("n\n"), IsInteractive: func() bool { return false }}
	ok, err := c.ConfirmOverwrite("report.json", true)
	if err != nil || !ok {
		t.Fatalf("ConfirmOverwrite(force) = (%v, %v)", ok, err)
	}
}

func TestConfirm_Interactive(t *testing.T) {
	cases := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "y": true}
	for input, want := range cases {
		var out bytes.Buffer
		c := Confirmer{In: bytes.NewBufferString(input), Out: &out, IsInteractive: func() bool { return true }}
		ok, err := c.Confirm("Delete the stored key?", false)
		if err != nil || ok != want {
			t.Fatalf("Confirm(%q) = (%v, %v), want %v", input, ok, err, want)
		}
		if !strings.Contains(out.String(), "Delete the stored key? (y/n): ") {
			t.Fatalf("prompt not written: %q", out.String())
		}
	}
}
