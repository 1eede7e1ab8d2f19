package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "server:\n  port: 1\n")

	var reloads atomic.Int32
	w := NewConfigWatcher(path, func(_ context.Context) error {
		reloads.Add(1)
		return nil
	}, testLogger())
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	// Rapid writes coalesce into one reload.
	for i := range 3 {
		writeFile(t, path, "server:\n  port: "+string(rune('2'+i))+"\n")
	}

	waitFor(t, func() bool { return reloads.Load() >= 1 })
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Errorf("reloads = %d, want 1", got)
	}
}

func TestIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "a: 1\n")

	var reloads atomic.Int32
	w := NewConfigWatcher(path, func(_ context.Context) error {
		reloads.Add(1)
		return nil
	}, testLogger())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "other.yaml"), "b: 2\n")
	time.Sleep(150 * time.Millisecond)

	if got := reloads.Load(); got != 0 {
		t.Errorf("reloads = %d, want 0", got)
	}
}

func TestReloadErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "a: 1\n")

	var reloads atomic.Int32
	w := NewConfigWatcher(path, func(_ context.Context) error {
		reloads.Add(1)
		return errors.New("bad yaml")
	}, testLogger())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	writeFile(t, path, "a: 2\n")
	waitFor(t, func() bool { return reloads.Load() == 1 })

	writeFile(t, path, "a: 3\n")
	waitFor(t, func() bool { return reloads.Load() == 2 })
}

func TestStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "a: 1\n")

	w := NewConfigWatcher(path, func(_ context.Context) error { return nil }, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestModTime(t *testing.T) {
	if !modTime(filepath.Join(t.TempDir(), "missing")).IsZero() {
		t.Error("missing file should have zero mod time")
	}
}
