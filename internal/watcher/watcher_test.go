package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleEvent_FiltersOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "doc.cfb"))
	require.NoError(t, err)
	defer w.Stop()

	var got []Event
	w.OnChange(func(e Event) { got = append(got, e) })

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "other.cfb"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "doc.cfb"), Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "doc.cfb"), Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "doc.cfb"), Op: fsnotify.Rename})

	require.Len(t, got, 2)
	assert.Equal(t, EventWrite, got[0].Type)
	assert.Equal(t, EventRename, got[1].Type)
	assert.Equal(t, "rename", got[1].Type.String())
}

func TestWatcher_DeliversWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.cfb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w, err := New(path)
	require.NoError(t, err)
	defer w.Stop()

	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, w.Path(), filepath.Clean(e.Path))
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestStop_Twice(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "doc.cfb"))
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
