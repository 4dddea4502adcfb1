// Package worlddb persists voxel world state to SQLite without blocking the
// simulation. Block, light and key writes are queued and applied by a single
// worker goroutine inside a rolling transaction that is committed whenever a
// Commit is queued. Signs, items, player state and auth identities are written
// synchronously on the caller's goroutine over the same connection.
package worlddb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"worldkeeper.dev/internal/sim/items"
)

type Config struct {
	Enabled  bool
	Path     string
	AuthPath string // default: auth.db next to Path

	QueueCapacity  int
	EnqueueTimeout time.Duration // <= 0 blocks producers until there is room
}

type Stats struct {
	Enabled bool `json:"enabled"`

	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`

	EnqueuedTotal   uint64 `json:"enqueued_total"`
	DroppedTotal    uint64 `json:"dropped_total"`
	AppliedTotal    uint64 `json:"applied_total"`
	WriteFailTotal  uint64 `json:"write_fail_total"`
	CommitTotal     uint64 `json:"commit_total"`
	CommitFailTotal uint64 `json:"commit_fail_total"`
}

// Engine is the persistence entry point. Every method is a no-op returning
// zero values while the engine is disabled.
type Engine struct {
	cfg Config
	log *log.Logger
	reg *items.Registry

	enabled atomic.Bool

	// mu is held for reading by every operation that touches the store and
	// for writing by Close, so nothing reaches the store after shutdown.
	mu     sync.RWMutex
	closed bool

	st    *store
	queue *Queue
	w     *worker
	ctr   counters

	// loadMu serializes the load path. It does not exclude the worker.
	loadMu sync.Mutex
	itemMu sync.Mutex
	ids    itemIDs
}

// Open creates the schema if needed, starts the worker and loads the persisted
// item table. A disabled config returns an engine that never opens the file.
func Open(cfg Config, reg *items.Registry, logger *log.Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, log: logger, reg: reg}
	e.enabled.Store(cfg.Enabled)
	if !cfg.Enabled {
		return e, nil
	}

	st, err := openStore(context.Background(), cfg.Path, cfg.AuthPath)
	if err != nil {
		return nil, fmt.Errorf("open world db: %w", err)
	}
	e.st = st
	e.queue = NewQueue(cfg.QueueCapacity)
	e.w = startWorker(e.queue, st, &e.ctr)

	if err := e.LoadItems(); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("load items: %w", err)
	}
	e.logf("opened %s (queue capacity %d)", cfg.Path, e.queue.Cap())
	return e, nil
}

// Close drains the queue, commits and closes the database. It is safe to call
// more than once.
func (e *Engine) Close() error {
	if e == nil || e.st == nil {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.w.stop()
	err := e.st.close(context.Background())

	if n := e.ctr.writeFail.Load(); n > 0 {
		e.logf("closed with %d failed queued writes", n)
	}
	return err
}

// Enable resumes an engine paused with Disable. An engine opened with
// Enabled false has no store and stays disabled.
func (e *Engine) Enable() {
	if e.st != nil {
		e.enabled.Store(true)
	}
}

func (e *Engine) Disable()      { e.enabled.Store(false) }
func (e *Engine) Enabled() bool { return e != nil && e.enabled.Load() }

func (e *Engine) active() bool {
	return e.Enabled() && e.st != nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.log != nil {
		e.log.Printf(format, args...)
	}
}

func (e *Engine) enqueue(c Command) {
	if !e.active() {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	e.queue.Enqueue(c, e.cfg.EnqueueTimeout)
}

// withStore runs fn on the store unless the engine is disabled or closed.
func (e *Engine) withStore(fn func(ctx context.Context, st *store) error) error {
	if !e.active() {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}
	return fn(context.Background(), e.st)
}

func (e *Engine) InsertBlock(p, q, x, y, z, w int) {
	e.enqueue(InsertBlock{P: p, Q: q, X: x, Y: y, Z: z, W: w})
}

func (e *Engine) InsertLight(p, q, x, y, z, w int) {
	e.enqueue(InsertLight{P: p, Q: q, X: x, Y: y, Z: z, W: w})
}

func (e *Engine) SetKey(p, q, key int) {
	e.enqueue(SetKey{P: p, Q: q, Key: key})
}

// Commit makes every write queued before it durable. Writes queued after it
// stay in the open transaction until the next Commit (or Close).
func (e *Engine) Commit() {
	e.enqueue(Commit{})
}

func (e *Engine) InsertSign(p, q, x, y, z, face int, text string) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.putSign(ctx, p, q, x, y, z, face, text)
	})
}

func (e *Engine) DeleteSign(x, y, z, face int) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.removeSign(ctx, x, y, z, face)
	})
}

// DeleteSigns removes every sign attached to the block at (x,y,z).
func (e *Engine) DeleteSigns(x, y, z int) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.removeSigns(ctx, x, y, z)
	})
}

func (e *Engine) DeleteAllSigns() error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.removeAllSigns(ctx)
	})
}

// SaveState replaces the saved player state.
func (e *Engine) SaveState(s State) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.saveState(ctx, s)
	})
}

func (e *Engine) LoadState() (s State, ok bool, err error) {
	err = e.withStore(func(ctx context.Context, st *store) error {
		s, ok, err = st.loadState(ctx)
		return err
	})
	return s, ok, err
}

func (e *Engine) Stats() Stats {
	s := Stats{Enabled: e.Enabled()}
	if e == nil || e.queue == nil {
		return s
	}
	s.QueueDepth = e.queue.Len()
	s.QueueCapacity = e.queue.Cap()
	s.EnqueuedTotal = e.queue.enqueued.Load()
	s.DroppedTotal = e.queue.dropped.Load()
	s.AppliedTotal = e.ctr.applied.Load()
	s.WriteFailTotal = e.ctr.writeFail.Load()
	s.CommitTotal = e.ctr.commits.Load()
	s.CommitFailTotal = e.ctr.commitFail.Load()
	return s
}
