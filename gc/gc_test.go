package gc

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
)

type exceptions struct {
	mu   sync.Mutex
	list []string
}

func (e *exceptions) add(s string) {
	e.mu.Lock()
	e.list = append(e.list, s)
	e.mu.Unlock()
}

func (e *exceptions) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

func newCollector(t *testing.T) (*Collector, *exceptions) {
	t.Helper()
	b := host.New()
	exc := &exceptions{}
	if err := b.Install(func(host.Level, string) {}, exc.add); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return New(b), exc
}

func TestCollect_NotInstalled(t *testing.T) {
	c := New(host.New())
	if err := c.Collect(context.Background(), Options{Blocking: true}); !errors.Is(err, serrors.ErrHostNotInitialized) {
		t.Fatalf("expected HostNotInitialized, got %v", err)
	}
	if err := c.DrainFinalizers(context.Background()); !errors.Is(err, serrors.ErrHostNotInitialized) {
		t.Fatalf("expected HostNotInitialized, got %v", err)
	}
}

func TestCollect_Blocking(t *testing.T) {
	c, _ := newCollector(t)
	var runs, compacts atomic.Int32
	c.collect = func() { runs.Add(1) }
	c.compact = func() { compacts.Add(1) }

	ctx := context.Background()
	if err := c.Collect(ctx, Options{Generation: -1, Mode: ModeForced, Blocking: true}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if err := c.Collect(ctx, Options{Blocking: true, Compacting: true}); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if runs.Load() != 1 || compacts.Load() != 1 {
		t.Fatalf("expected one plain and one compacting pass, got %d/%d", runs.Load(), compacts.Load())
	}
	st := c.Stats()
	if st.Passes != 2 || st.LastRun.IsZero() {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCollect_Optimized(t *testing.T) {
	c, _ := newCollector(t)
	heap := uint64(1000)
	c.heap = func() uint64 { return heap }
	c.collect = func() {}

	ctx := context.Background()
	opts := Options{Mode: ModeOptimized, Blocking: true}

	// The first optimized pass always runs.
	_ = c.Collect(ctx, opts)
	_ = c.Collect(ctx, opts)
	if st := c.Stats(); st.Passes != 1 || st.Skipped != 1 {
		t.Fatalf("expected second pass skipped, got %+v", st)
	}

	heap = 2000
	_ = c.Collect(ctx, opts)
	if st := c.Stats(); st.Passes != 2 {
		t.Fatalf("heap growth should trigger a pass, got %+v", st)
	}

	_ = c.Collect(ctx, Options{Mode: ModeForced, Blocking: true})
	if st := c.Stats(); st.Passes != 3 {
		t.Fatalf("forced pass should always run, got %+v", st)
	}
}

func TestCollect_NonBlocking(t *testing.T) {
	c, _ := newCollector(t)
	var runs atomic.Int32
	c.collect = func() { runs.Add(1) }

	for i := 0; i < 4; i++ {
		if err := c.Collect(context.Background(), Options{}); err != nil {
			t.Fatalf("Collect: %v", err)
		}
	}
	c.Wait()
	if runs.Load() != 4 {
		t.Fatalf("expected 4 passes, got %d", runs.Load())
	}
}

func TestCollect_PanicRecovered(t *testing.T) {
	c, exc := newCollector(t)
	c.collect = func() { panic("collector exploded") }

	err := c.Collect(context.Background(), Options{Blocking: true})
	if !errors.Is(err, serrors.ErrUnknown) {
		t.Fatalf("expected UnknownError, got %v", err)
	}
	if exc.len() != 1 || !strings.Contains(exc.list[0], "collect") {
		t.Fatalf("panic should be reported, got %v", exc.list)
	}

	// Non-blocking passes report but do not return the error.
	if err := c.Collect(context.Background(), Options{}); err != nil {
		t.Fatalf("non-blocking Collect: %v", err)
	}
	c.Wait()
	if exc.len() != 2 {
		t.Fatalf("expected second report, got %d", exc.len())
	}
}

func TestCollect_CancelledContext(t *testing.T) {
	c, _ := newCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Collect(ctx, Options{Blocking: true}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

type finalized struct {
	_ [64]byte
}

func TestDrainFinalizers(t *testing.T) {
	c, _ := newCollector(t)

	var ran atomic.Int32
	func() {
		for i := 0; i < 10; i++ {
			obj := new(finalized)
			runtime.SetFinalizer(obj, func(*finalized) { ran.Add(1) })
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.DrainFinalizers(ctx); err != nil {
		t.Fatalf("DrainFinalizers: %v", err)
	}
	if ran.Load() != 10 {
		t.Fatalf("expected all 10 finalizers to have run, got %d", ran.Load())
	}
}

func TestDrainFinalizers_ContextDone(t *testing.T) {
	c, _ := newCollector(t)
	c.collect = func() {}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.DrainFinalizers(ctx)
	if !errors.Is(err, context.DeadlineExceeded) && err != nil {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestMode_String(t *testing.T) {
	if ModeDefault.String() != "default" || ModeForced.String() != "forced" || ModeOptimized.String() != "optimized" {
		t.Error("unexpected mode names")
	}
}
