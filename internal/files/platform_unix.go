//go:build !windows

package files

import "os"

func renameAtomic(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Symlinks are caught by Lstat; there is no separate reparse concept.
func isReparsePoint(string) (bool, error) {
	return false, nil
}
