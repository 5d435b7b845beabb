package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
	calls chan string
	err   error
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{calls: make(chan string, 16)}
}

func (r *recordingUploader) UploadFile(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.calls <- path
	return r.err
}

func (r *recordingUploader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func onlyText(path string) bool { return strings.HasSuffix(path, ".txt") }

func startWatcher(t *testing.T, dir string, up Uploader) context.CancelFunc {
	t.Helper()
	w, err := New(Config{Dir: dir, Debounce: 50 * time.Millisecond, Accept: onlyText}, up, zap.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitUpload(t *testing.T, up *recordingUploader) string {
	t.Helper()
	select {
	case p := <-up.calls:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for upload")
		return ""
	}
}

func TestWatcher_UploadsNewFileOnce(t *testing.T) {
	dir := t.TempDir()
	up := newRecordingUploader()
	startWatcher(t, dir, up)

	path := filepath.Join(dir, "notes.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.WriteString("graph text\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	assert.Equal(t, path, waitUpload(t, up))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, up.count(), "a burst of writes collapses into one upload")
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	up := newRecordingUploader()
	startWatcher(t, dir, up)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.bin"), []byte{0, 1, 2}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("text"), 0o644))

	assert.Equal(t, filepath.Join(dir, "doc.txt"), waitUpload(t, up))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, up.count())
}

func TestWatcher_FollowsNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	up := newRecordingUploader()
	startWatcher(t, dir, up)

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("text"), 0o644))

	assert.Equal(t, filepath.Join(sub, "deep.txt"), waitUpload(t, up))
}

func TestWatcher_FailedUploadKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	up := newRecordingUploader()
	up.err = errors.New("backend down")
	startWatcher(t, dir, up)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	waitUpload(t, up)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	assert.Equal(t, filepath.Join(dir, "b.txt"), waitUpload(t, up))
}

func TestWatcher_SyncUploadsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.png"), []byte("2"), 0o644))

	up := newRecordingUploader()
	w, err := New(Config{Dir: dir, Accept: onlyText}, up, nil)
	require.NoError(t, err)
	defer w.stop()

	require.NoError(t, w.Sync(context.Background()))
	assert.Equal(t, []string{filepath.Join(dir, "one.txt")}, up.paths)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(Config{Dir: filepath.Join(t.TempDir(), "absent")}, newRecordingUploader(), nil)
	assert.Error(t, err)
}

func TestWatcher_EventAfterTimerFiredUploadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	up := newRecordingUploader()
	w, err := New(Config{Dir: dir, Debounce: 20 * time.Millisecond, Accept: onlyText}, up, zap.NewNop())
	require.NoError(t, err)

	// The first timer fires and queues the path while nothing drains it yet.
	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Create})
	require.Eventually(t, func() bool { return len(w.ready) == 1 }, time.Second, 5*time.Millisecond)

	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	assert.Equal(t, path, waitUpload(t, up))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, up.count())
}
