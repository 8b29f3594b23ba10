// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ConvertQueue - FFmpeg 媒体转换队列

package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/convertqueue/internal/plan"
)

type enqueueCall struct {
	source string
	preset string
	tier   plan.Tier
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueueCall
}

func (f *fakeEnqueuer) Enqueue(source, presetID string, tier plan.Tier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueueCall{source, presetID, tier})
	return fmt.Sprintf("job-%d", len(f.calls)), nil
}

func (f *fakeEnqueuer) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.source
	}
	return out
}

func TestIsMediaFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/inbox/movie.mkv", true},
		{"/inbox/MOVIE.MP4", true},
		{"/inbox/song.flac", true},
		{"/inbox/anim.gif", true},
		{"/inbox/notes.txt", false},
		{"/inbox/movie.mkv.part", false},
		{"/inbox/noext", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isMediaFile(tt.path), tt.path)
	}
}

func TestOpLabel(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "write"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Rename, "rename"},
		{fsnotify.Chmod, "chmod"},
		{fsnotify.Create | fsnotify.Write, "create"},
		{0, "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, opLabel(tt.op))
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Preset: "mp4-h264"}, &fakeEnqueuer{})
	assert.ErrorContains(t, err, "watch directory not set")

	_, err = New(Config{Dir: t.TempDir(), Preset: "divx-classic"}, &fakeEnqueuer{})
	assert.ErrorContains(t, err, "watch preset 'divx-classic' unknown")
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(Config{Dir: t.TempDir(), Preset: "mp4-h264"}, &fakeEnqueuer{})
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.Equal(t, DefaultSettle, w.settle)
	assert.Equal(t, plan.TierBalanced, w.tier)
}

func TestWatcher_EnqueuesSettledFile(t *testing.T) {
	dir := t.TempDir()
	enq := &fakeEnqueuer{}

	w, err := New(Config{Dir: dir, Preset: "mp4-h264", Tier: plan.TierHigh, Settle: 50 * time.Millisecond}, enq)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0o644))

	require.Eventually(t, func() bool { return len(enq.sources()) == 1 }, 2*time.Second, 10*time.Millisecond)

	enq.mu.Lock()
	call := enq.calls[0]
	enq.mu.Unlock()
	assert.Equal(t, path, call.source)
	assert.Equal(t, "mp4-h264", call.preset)
	assert.Equal(t, plan.TierHigh, call.tier)
}

func TestWatcher_RearmsOnWrite(t *testing.T) {
	dir := t.TempDir()
	enq := &fakeEnqueuer{}

	w, err := New(Config{Dir: dir, Preset: "mp4-h264", Settle: 80 * time.Millisecond}, enq)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// a slow copy keeps touching the file; it must be enqueued once, after
	// the writes stop
	path := filepath.Join(dir, "movie.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err = f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return len(enq.sources()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, enq.sources(), 1)
}

func TestWatcher_IgnoresNonMedia(t *testing.T) {
	dir := t.TempDir()
	enq := &fakeEnqueuer{}

	w, err := New(Config{Dir: dir, Preset: "mp4-h264", Settle: 50 * time.Millisecond}, enq)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not media"), 0o644))

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, enq.sources())
}

func TestWatcher_RemoveCancelsPending(t *testing.T) {
	dir := t.TempDir()
	enq := &fakeEnqueuer{}

	w, err := New(Config{Dir: dir, Preset: "mp4-h264", Settle: 500 * time.Millisecond}, enq)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(path, []byte("media bytes"), 0o644))
	require.NoError(t, os.Remove(path))

	time.Sleep(1200 * time.Millisecond)
	assert.Empty(t, enq.sources())
}

func TestWatcher_SkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	enq := &fakeEnqueuer{}

	w, err := New(Config{Dir: dir, Preset: "mp4-h264", Settle: 50 * time.Millisecond}, enq)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "placeholder.mkv"), nil, 0o644))

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, enq.sources())
}
