// Package fileutil writes key files and configuration without leaving
// partially written files behind.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrEmptyPath indicates an empty file path was provided.
	ErrEmptyPath = errors.New("path is empty")

	// ErrExists indicates the target already exists and overwriting was not requested.
	ErrExists = errors.New("file already exists")
)

// dirPerm is used for parent directories created on demand.
const dirPerm = 0o700

// WriteAtomic writes data to path atomically with the provided permissions.
// Missing parent directories are created. It writes to a temp file in the
// same directory, fsyncs, then renames.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmpFile.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmpFile.Close()
		}
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	closed = true

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path is validated by caller, not from user input
		return fmt.Errorf("renaming temp file: %w", err)
	}

	// Best effort directory sync for rename durability.
	if dirFile, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from validated path
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}

// WriteNew is WriteAtomic that refuses to replace an existing file unless
// overwrite is set.
func WriteNew(path string, data []byte, perm os.FileMode, overwrite bool) error {
	if path == "" {
		return ErrEmptyPath
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	return WriteAtomic(path, data, perm)
}
