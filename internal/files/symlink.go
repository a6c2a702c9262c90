package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RejectSymlinkPath returns an error if path or any existing ancestor is a
// symlink or, on Windows, a reparse point.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	volume := filepath.VolumeName(abs)
	current := volume + string(os.PathSeparator)
	rest := strings.TrimLeft(abs[len(volume):], string(os.PathSeparator))
	if rest == "" {
		return nil
	}

	for _, part := range strings.Split(rest, string(os.PathSeparator)) {
		if part == "" {
			continue
		}
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to access path: %w", err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write to symlink path: %s (symlink detected at %s)", abs, current)
		}
		reparse, err := isReparsePoint(current)
		if err != nil {
			return fmt.Errorf("failed to check reparse point: %w", err)
		}
		if reparse {
			return fmt.Errorf("refusing to write to symlink path: %s (reparse point detected at %s)", abs, current)
		}
	}
	return nil
}
