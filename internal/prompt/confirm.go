package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNonInteractive is returned when confirmation needs a terminal.
var ErrNonInteractive = errors.New("non-interactive stdin: use -y to confirm")

type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stdout,
		IsInteractive: func() bool {
			info, err := os.Stdin.Stat()
			if err != nil {
				return false
			}
			return (info.Mode() & os.ModeCharDevice) != 0
		},
	}
}

// Confirm asks a yes/no question. force answers yes without asking.
func (c Confirmer) Confirm(question string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, ErrNonInteractive
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s (y/n): ", question)
	}
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c Confirmer) ConfirmOverwrite(path string, force bool) (bool, error) {
	return c.Confirm(fmt.Sprintf("Warning: Output file %s already exists. Overwrite?", path), force)
}
