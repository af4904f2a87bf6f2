// Package testutil provides shared test helpers for setting up vaults.
package testutil

import (
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/storage"
)

// TestVault creates a temporary vault directory with a file-system provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteFiles writes each path -> content pair into the vault.
func WriteFiles(t *testing.T, store *storage.FS, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// ReadFile returns the content of a vault file or fails the test.
func ReadFile(t *testing.T, store *storage.FS, path string) string {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// FixedClock returns a clock func that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
