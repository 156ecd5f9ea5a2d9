// Package gc exposes explicit collection and finalizer draining so unloads
// can be made deterministic enough to verify.
//
// Go's collector is not generational and cannot be told which objects to
// reclaim. Collect runs a full cycle; Options only choose whether it runs at
// all (ModeOptimized skips when the heap has not grown), whether the caller
// waits, and whether freed memory goes back to the OS.
package gc

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
)

// Mode selects when a pass actually runs.
type Mode uint8

const (
	ModeDefault Mode = iota
	ModeForced
	ModeOptimized
)

func (m Mode) String() string {
	switch m {
	case ModeForced:
		return "forced"
	case ModeOptimized:
		return "optimized"
	}
	return "default"
}

// Options controls one Collect call. Generation is accepted for callers that
// think in generations; any value collects everything.
type Options struct {
	Generation int
	Mode       Mode
	Blocking   bool
	Compacting bool
}

// Stats describes the collector's history.
type Stats struct {
	LastRun   time.Time
	Passes    uint64
	Skipped   uint64
	LastPause time.Duration
	HeapInUse uint64
}

// Collector runs collection passes. Passes never overlap.
type Collector struct {
	bridge   *host.Bridge
	collect  func()
	compact  func()
	heap     func() uint64
	stats    Stats
	lastHeap uint64
	wg       sync.WaitGroup
	passMu   sync.Mutex
	statsMu  sync.Mutex
}

// New creates a collector reporting through bridge.
func New(bridge *host.Bridge) *Collector {
	return &Collector{
		bridge:  bridge,
		collect: runtime.GC,
		compact: debug.FreeOSMemory,
		heap:    heapInUse,
	}
}

// Collect runs a pass. A non-blocking call returns immediately and reports
// failures through the bridge.
func (c *Collector) Collect(ctx context.Context, opts Options) error {
	if err := c.bridge.Check("Collect"); err != nil {
		return err
	}
	if !opts.Blocking {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			_ = c.pass(opts)
		}()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.PhaseGC, errors.KindUnknown, err, "collect")
	}
	return c.pass(opts)
}

// Wait blocks until every non-blocking pass started so far has finished.
func (c *Collector) Wait() {
	c.wg.Wait()
}

func (c *Collector) pass(opts Options) (err error) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	log := c.bridge.Logger().Named("gc")
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseGC, "collect", r)
			c.bridge.ReportException(err.Error())
		}
	}()

	before := c.heap()
	if opts.Mode == ModeOptimized && c.passes() > 0 && before <= c.lastHeap {
		c.statsMu.Lock()
		c.stats.Skipped++
		c.statsMu.Unlock()
		log.Debug("collection skipped", zap.Uint64("heap", before), zap.Uint64("last", c.lastHeap))
		return nil
	}

	start := time.Now()
	if opts.Compacting {
		c.compact()
	} else {
		c.collect()
	}
	pause := time.Since(start)
	after := c.heap()
	c.lastHeap = after

	c.statsMu.Lock()
	c.stats.Passes++
	c.stats.LastPause = pause
	c.stats.LastRun = start
	c.stats.HeapInUse = after
	c.statsMu.Unlock()

	log.Debug("collection pass",
		zap.Stringer("mode", opts.Mode),
		zap.Int("generation", opts.Generation),
		zap.Bool("compacting", opts.Compacting),
		zap.Duration("pause", pause),
		zap.Uint64("heap_before", before),
		zap.Uint64("heap_after", after),
	)
	return nil
}

func (c *Collector) passes() uint64 {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats.Passes
}

// Stats returns a snapshot of the collector's history.
func (c *Collector) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapInuse
}
