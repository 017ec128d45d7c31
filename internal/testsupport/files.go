package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleRules is a small two-section checklist with risk keywords.
const SampleRules = `sop_rules:
  Greeting:
    weight: 20
    steps:
      - Greet the customer by name
      - text: Introduce yourself
        internal_intent: Agent states their own name
  Resolution:
    weight: 30
    steps:
      - text: Confirm the issue is fixed
        suggestion: Ask the customer to verify the fix before closing.
sentiments:
  risk_keywords:
    - lawsuit
    - cancel my account
`

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	for remaining := size; remaining > 0; {
		n := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
