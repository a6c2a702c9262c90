//go:build windows

package files

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func renameAtomic(oldPath, newPath string) error {
	oldPtr, err := windows.UTF16PtrFromString(oldPath)
	if err != nil {
		return fmt.Errorf("invalid source path: %w", err)
	}
	newPtr, err := windows.UTF16PtrFromString(newPath)
	if err != nil {
		return fmt.Errorf("invalid destination path: %w", err)
	}
	return windows.MoveFileEx(oldPtr, newPtr, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

func isReparsePoint(path string) (bool, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, err
	}
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0, nil
}
