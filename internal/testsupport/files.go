package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of filler to path, creating parents. Media
// stubs only need to exist with a plausible size, so at least one byte is
// always written.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	write(t, path, bytes.Repeat([]byte{'B'}, int(max(size, 1))), 0o644)
}

// WriteScript writes an executable /bin/sh script and returns its path.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	write(t, path, []byte("#!/bin/sh\n"+body), 0o755)
	return path
}

func write(t testing.TB, path string, data []byte, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
