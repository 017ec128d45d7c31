package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SaveStream writes r to dst through a temporary file in the same directory
// and renames it into place once fully written. It returns the byte count and
// the SHA256 of what was written.
func SaveStream(r io.Reader, dst string) (int64, string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return written, "", err
	}
	if err := tmp.Close(); err != nil {
		return written, "", err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return written, "", fmt.Errorf("rename into place: %w", err)
	}
	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}
