package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quipex/habit-button/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) cb(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func startWatcher(t *testing.T, files map[string]string) (string, *recorder) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	testutil.WriteFiles(t, store, files)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, store, vaultDir, 50*time.Millisecond, logger, rec.cb)
	time.Sleep(100 * time.Millisecond)
	return vaultDir, rec
}

func TestWatcher_NewFile(t *testing.T) {
	vaultDir, rec := startWatcher(t, nil)
	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New"), 0o644)

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:new.md")
	}, "expected created event for new.md")
}

func TestWatcher_UpdateIsDebounced(t *testing.T) {
	vaultDir, rec := startWatcher(t, map[string]string{"daily/2024-06-15.md": "start\n"})
	path := filepath.Join(vaultDir, "daily", "2024-06-15.md")
	for i := 0; i < 5; i++ {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = f.WriteString("- #habit_walk 07:00\n")
		f.Close()
	}

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("updated:daily/2024-06-15.md")
	}, "expected updated event")
	time.Sleep(200 * time.Millisecond)
	if n := rec.count("updated:daily/2024-06-15.md"); n != 1 {
		t.Errorf("burst produced %d events, want 1", n)
	}
}

func TestWatcher_Delete(t *testing.T) {
	vaultDir, rec := startWatcher(t, map[string]string{"gone.md": "x"})
	_ = os.Remove(filepath.Join(vaultDir, "gone.md"))

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:gone.md")
	}, "expected deleted event")
}

func TestWatcher_NewDirectory(t *testing.T) {
	vaultDir, rec := startWatcher(t, nil)
	dir := filepath.Join(vaultDir, "daily")
	_ = os.MkdirAll(dir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(dir, "2024-06-15.md"), []byte("- #habit_walk 07:00"), 0o644)

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:daily/2024-06-15.md")
	}, "expected created event inside new directory")
}

func TestWatcher_DirectoryMovedAway(t *testing.T) {
	vaultDir, rec := startWatcher(t, map[string]string{"old/a.md": "x"})
	if err := os.Rename(filepath.Join(vaultDir, "old"), filepath.Join(t.TempDir(), "moved")); err != nil {
		t.Skipf("cross-device rename: %v", err)
	}

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:old/a.md")
	}, "expected deleted event after directory move")
}

func TestMerge(t *testing.T) {
	tests := []struct{ prev, next, want string }{
		{"", KindUpdated, KindUpdated},
		{KindCreated, KindUpdated, KindCreated},
		{KindDeleted, KindCreated, KindUpdated},
		{KindCreated, KindDeleted, ""},
		{KindUpdated, KindDeleted, KindDeleted},
	}
	for _, tt := range tests {
		if got := merge(tt.prev, tt.next); got != tt.want {
			t.Errorf("merge(%q, %q) = %q, want %q", tt.prev, tt.next, got, tt.want)
		}
	}
}
