package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SafePath returns path if nothing exists there, otherwise the first free
// name among base_1..base_9, otherwise base_<uuid>. changed reports a rename.
func SafePath(path string) (safe string, changed bool, err error) {
	if path == "" {
		return "", false, errors.New("path is empty")
	}
	exists, err := pathExists(path)
	if err != nil || !exists {
		return path, false, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		taken, err := pathExists(candidate)
		if err != nil {
			return "", false, err
		}
		if !taken {
			return candidate, true, nil
		}
	}

	suffix := uuid.NewString()
	if u, err := uuid.NewV7(); err == nil {
		suffix = u.String()
	}
	return fmt.Sprintf("%s_%s%s", base, suffix, ext), true, nil
}

// OutputPath resolves where to write path. With overwrite the path is used
// as-is; otherwise collisions are avoided through SafePath.
func OutputPath(path string, overwrite bool) (string, bool, error) {
	if overwrite {
		if path == "" {
			return "", false, errors.New("path is empty")
		}
		return path, false, nil
	}
	return SafePath(path)
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
