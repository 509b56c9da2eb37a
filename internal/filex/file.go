// Package filex has small filesystem helpers for files that hold or guard
// vault data.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PrivateDirPerm is used for every directory the vault creates.
const PrivateDirPerm = 0o700

// EnsureParentDir creates the directory that will hold path, owner-only.
// Existing directories are left as they are.
func EnsureParentDir(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, PrivateDirPerm); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveStale deletes path if it exists. A missing file is not an error.
func RemoveStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
