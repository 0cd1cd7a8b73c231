package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SkipIfNoDevice skips the test unless a SCSI generic node is present and
// returns the first one found
func SkipIfNoDevice(t *testing.T) string {
	t.Helper()

	matches, _ := filepath.Glob("/dev/sg[0-9]*")
	for _, path := range matches {
		if f, err := os.OpenFile(path, os.O_RDWR, 0); err == nil {
			f.Close()
			return path
		}
	}
	t.Skip("No accessible SCSI generic device")
	return ""
}

// TempFile creates a temporary file with given content
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// MakePattern creates deterministic non-zero test data
func MakePattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i*17+11)%255 + 1)
	}
	return data
}

// AssertNoError fails if error is not nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError fails if error is nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertBytesEqual compares byte slices
func AssertBytesEqual(t *testing.T, got, want []byte, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: length mismatch: got %d, want %d", msg, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: mismatch at index %d: got %d, want %d", msg, i, got[i], want[i])
			return
		}
	}
}

// AssertZero fails unless every byte of b is zero
func AssertZero(t *testing.T, b []byte, msg string) {
	t.Helper()
	for i, v := range b {
		if v != 0 {
			t.Errorf("%s: byte %d = %#x, expected 0", msg, i, v)
			return
		}
	}
}
