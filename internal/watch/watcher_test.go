package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipbul/gildash/internal/indexer"
)

func TestWatcherForwardsCreateAndWrite(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, []string{".ts"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	events := make(chan indexer.WatcherEvent, 8)
	require.NoError(t, w.Start(context.Background(), func(e indexer.WatcherEvent) { events <- e }))

	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, "a.ts", e.FilePath)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestWatcherIgnoresNonMatchingExtension(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, []string{".ts"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	events := make(chan indexer.WatcherEvent, 8)
	require.NoError(t, w.Start(context.Background(), func(e indexer.WatcherEvent) { events <- e }))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("hello"), 0o644))

	select {
	case e := <-events:
		t.Fatalf("unexpected event for ignored extension: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPauseSuppressesEvents(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, []string{".ts"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	events := make(chan indexer.WatcherEvent, 8)
	require.NoError(t, w.Start(context.Background(), func(e indexer.WatcherEvent) { events <- e }))

	w.Pause()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("hello"), 0o644))

	select {
	case e := <-events:
		t.Fatalf("unexpected event while paused: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}

	w.Resume()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.ts"), []byte("hello"), 0o644))
	select {
	case e := <-events:
		assert.Equal(t, "b.ts", e.FilePath)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after resume")
	}
}

func TestWatcherDetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	w, err := New(root, []string{".ts"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	events := make(chan indexer.WatcherEvent, 8)
	require.NoError(t, w.Start(context.Background(), func(e indexer.WatcherEvent) { events <- e }))

	require.NoError(t, os.Remove(path))

	for {
		select {
		case e := <-events:
			if e.EventType == indexer.EventDelete {
				assert.Equal(t, "a.ts", e.FilePath)
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for delete event")
		}
	}
}
