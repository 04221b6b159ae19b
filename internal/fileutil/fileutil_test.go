package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopies(t *testing.T) {
	payload := bytes.Repeat([]byte("frame"), 4096)
	copiers := map[string]func(src, dst string) error{
		"CopyFile":         CopyFile,
		"CopyFileVerified": CopyFileVerified,
	}
	for name, copyFn := range copiers {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "render.mp4")
			dst := filepath.Join(dir, "published.mp4")
			writeFile(t, src, payload)
			// An older file at the destination is replaced, not appended to.
			writeFile(t, dst, bytes.Repeat([]byte("x"), len(payload)*2))

			if err := copyFn(src, dst); err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			got, err := os.ReadFile(dst)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("copied %d bytes, want %d", len(got), len(payload))
			}

			if err := copyFn(filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "other.mp4")); err == nil {
				t.Fatal("expected error for missing source")
			}
		})
	}
}

func TestHashFileDistinguishesContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	writeFile(t, a, []byte("take one"))
	writeFile(t, b, []byte("take two"))

	sumA, err := hashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	sumB, err := hashFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(sumA) != 32 || bytes.Equal(sumA, sumB) {
		t.Fatalf("unexpected digests %x %x", sumA, sumB)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "job-1", "video.mp4")
	dst := filepath.Join(dir, "out", "2026", "job-1.mp4")
	writeFile(t, src, []byte("mp4"))

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone after move")
	}
	if got, err := os.ReadFile(dst); err != nil || string(got) != "mp4" {
		t.Fatalf("destination content %q, err %v", got, err)
	}
	if err := MoveFile(src, dst); err == nil {
		t.Fatal("expected error moving a missing file")
	}
}
