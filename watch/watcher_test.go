package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/scripthost/boundary"
	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/image"
	"github.com/wippyai/scripthost/runtime"
)

type fakeReloader struct {
	bridge *host.Bridge
	err    error
	mu     sync.Mutex
	calls  []boundary.ContextID
}

func newFakeReloader(t *testing.T) *fakeReloader {
	b := host.New()
	require.NoError(t, b.Install(func(host.Level, string) {}, nil))
	return &fakeReloader{bridge: b}
}

func (f *fakeReloader) Reload(_ context.Context, id boundary.ContextID) (boundary.ContextID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.err != nil {
		return 0, f.err
	}
	return id + 1, nil
}

func (f *fakeReloader) Bridge() *host.Bridge { return f.bridge }

func (f *fakeReloader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewWatcher_Invalid(t *testing.T) {
	_, err := NewWatcher(nil, 1, []string{"a.wasm"}, Options{})
	assert.ErrorIs(t, err, serrors.ErrNullReference)

	_, err = NewWatcher(newFakeReloader(t), 1, nil, Options{})
	assert.ErrorIs(t, err, serrors.ErrInvalidSource)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "player.wasm")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0o644))

	rt := newFakeReloader(t)
	var mu sync.Mutex
	var batches [][]string
	w, err := NewWatcher(rt, 10, []string{watched}, Options{
		Debounce: 30 * time.Millisecond,
		OnReload: func(_ boundary.ContextID, files []string, err error) {
			mu.Lock()
			batches = append(batches, files)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Unwatched files in the same directory are ignored.
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rt.count())

	// A burst of writes is one reload.
	for i := range 3 {
		require.NoError(t, os.WriteFile(watched, []byte{byte(i)}, 0o644))
	}
	require.Eventually(t, func() bool { return rt.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rt.count())

	assert.Equal(t, boundary.ContextID(11), w.Context())
	assert.Equal(t, uint64(1), w.Reloads())
	mu.Lock()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{watched}, batches[0])
	mu.Unlock()
}

func TestWatcher_ReportsReloadErrors(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "player.wasm")
	require.NoError(t, os.WriteFile(watched, []byte("v1"), 0o644))

	rt := newFakeReloader(t)
	rt.err = serrors.NotFound(serrors.PhaseLoad, "module file", watched)
	var mu sync.Mutex
	var reported []string
	require.NoError(t, rt.bridge.Install(func(host.Level, string) {}, func(desc string) {
		mu.Lock()
		reported = append(reported, desc)
		mu.Unlock()
	}))

	w, err := NewWatcher(rt, 3, []string{watched}, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(watched, []byte("v2"), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, reported[0], "not_found")
	mu.Unlock()
	assert.Equal(t, boundary.ContextID(3), w.Context(), "failed reload keeps the old id")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(newFakeReloader(t), 1, []string{filepath.Join(t.TempDir(), "a.wasm")}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcher_ConcurrentStop(t *testing.T) {
	w, err := NewWatcher(newFakeReloader(t), 1, []string{filepath.Join(t.TempDir(), "a.wasm")}, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.Stop()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestWatcher_Runtime(t *testing.T) {
	b := host.New()
	require.NoError(t, b.Install(func(host.Level, string) {}, nil))
	rt := runtime.New(b)
	ctx := context.Background()
	defer rt.Close(ctx)

	path := filepath.Join(t.TempDir(), "player.wasm")
	require.NoError(t, os.WriteFile(path, image.Starter("player"), 0o644))

	game, err := rt.CreateContext(ctx, "game")
	require.NoError(t, err)
	_, err = rt.LoadFile(ctx, game, path)
	require.NoError(t, err)

	done := make(chan error, 1)
	w, err := NewWatcher(rt, game, []string{path}, Options{
		Debounce: 20 * time.Millisecond,
		OnReload: func(_ boundary.ContextID, _ []string, err error) { done <- err },
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, image.Library("player"), 0o644))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	mods, err := rt.Modules(w.Context())
	require.NoError(t, err)
	require.Len(t, mods, 1)
	_, ok := mods[0].Signature("double")
	assert.True(t, ok, "reloaded module should be the new image")
}
