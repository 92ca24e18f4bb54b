package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy-and-remove when the
// destination is on a different filesystem.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := CopyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("cross-device copy: %w", err)
	}
	return os.Remove(src)
}

// UniqueDestination returns a path in dir for name that does not collide
// with an existing file. Collisions get a timestamp suffix before the
// extension, so repeated exports of the same order never overwrite an
// earlier result.
func UniqueDestination(dir, name string) string {
	dst := filepath.Join(dir, name)
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		return dst
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := time.Now().Format("20060102-150405")

	dst = filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, stamp, ext))
	for seq := 1; ; seq++ {
		if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
			return dst
		}
		dst = filepath.Join(dir, fmt.Sprintf("%s.%s-%d%s", stem, stamp, seq, ext))
	}
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial
// file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
