package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveStream(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "uploads", "call.wav")
	content := "RIFF fake audio"

	n, sum, err := SaveStream(strings.NewReader(content), dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(content)) {
		t.Fatalf("written = %d, want %d", n, len(content))
	}
	want := sha256.Sum256([]byte(content))
	if sum != hex.EncodeToString(want[:]) {
		t.Fatalf("sha mismatch: %s", sum)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}
