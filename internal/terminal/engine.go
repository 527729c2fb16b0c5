// Package terminal runs the miner terminal: it polls on-chain state into
// immutable snapshots, derives display-ready views on a fast tick, and
// serves both over HTTP and WebSocket.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/glazecorp/glaze-engine/internal/chain"
	"github.com/glazecorp/glaze-engine/internal/contracts"
	"github.com/glazecorp/glaze-engine/internal/metrics"
	"github.com/glazecorp/glaze-engine/internal/model"
	"github.com/glazecorp/glaze-engine/internal/oracle"
	"github.com/glazecorp/glaze-engine/internal/store"
)

// ErrNoSnapshot is returned before the first successful poll.
var ErrNoSnapshot = errors.New("terminal: no snapshot yet")

// Publisher receives every derived view and every newly recorded glaze.
// The WebSocket hub implements it.
type Publisher interface {
	PublishView(view model.MinerView)
	PublishGlaze(rec model.GlazeRecord)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Reader    chain.StateReader
	Store     store.Store
	Prices    oracle.Source // optional; read on poll, USD fields render as placeholders without it
	Publisher Publisher     // optional
	Deriver   *Deriver

	Book    contracts.Book
	Account common.Address

	TickInterval time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Validate checks required fields and fills defaults.
func (cfg *EngineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Reader == nil {
		return errors.New("state reader is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Deriver == nil {
		return errors.New("deriver is required")
	}
	if err := cfg.Book.Validate(); err != nil {
		return err
	}
	if cfg.TickInterval <= 0 || cfg.PollInterval <= 0 {
		return errors.New("tick and poll intervals must be greater than 0")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = cfg.PollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine owns the current snapshot and the timers that refresh it.
type Engine struct {
	log *slog.Logger
	cfg EngineConfig

	snap    atomic.Pointer[model.Snapshot]
	pollMu  sync.Mutex
	refresh chan struct{}

	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewEngine validates cfg and returns an idle Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("terminal: %w", err)
	}
	return &Engine{
		log:     cfg.Logger,
		cfg:     cfg,
		refresh: make(chan struct{}, 1),
		readyCh: make(chan struct{}),
	}, nil
}

// Ready reports whether a snapshot has been published.
func (e *Engine) Ready() bool {
	select {
	case <-e.readyCh:
		return true
	default:
		return false
	}
}

// WaitReady blocks until the first snapshot or ctx ends.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for terminal snapshot: %w", ctx.Err())
	}
}

// Snapshot returns the current snapshot, or nil before the first poll.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.snap.Load()
}

// Start runs the engine in a goroutine until ctx ends.
func (e *Engine) Start(ctx context.Context) {
	go e.Run(ctx)
}

// Run polls once, then drives the tick and poll timers until ctx ends.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("terminal: starting engine", "tick", e.cfg.TickInterval, "poll", e.cfg.PollInterval)

	e.safePoll(ctx)

	tick := e.cfg.Clock.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()
	poll := e.cfg.Clock.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("terminal: engine stopped")
			return
		case <-tick.Chan():
			e.Tick()
		case <-poll.Chan():
			e.safePoll(ctx)
		case <-e.refresh:
			e.safePoll(ctx)
		}
	}
}

// Refresh requests an immediate poll. It never blocks; requests made while
// one is pending collapse into it.
func (e *Engine) Refresh() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

// Tick derives the view for the current time and publishes it. It reads
// only the current snapshot and never performs I/O.
func (e *Engine) Tick() {
	snap := e.snap.Load()
	if snap == nil {
		return
	}
	now := e.cfg.Clock.Now()
	metrics.SnapshotAge.Set(now.Sub(snap.FetchedAt).Seconds())
	if e.cfg.Publisher == nil {
		return
	}
	e.cfg.Publisher.PublishView(e.deriveAt(snap, now))
}

// View derives the miner view at the current time from the current
// snapshot.
func (e *Engine) View() (model.MinerView, error) {
	snap := e.snap.Load()
	if snap == nil {
		return model.MinerView{}, ErrNoSnapshot
	}
	return e.deriveAt(snap, e.cfg.Clock.Now()), nil
}

func (e *Engine) deriveAt(snap *model.Snapshot, now time.Time) model.MinerView {
	return e.cfg.Deriver.Miner(snap, now.Unix())
}

func (e *Engine) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("terminal: poll panicked", "panic", r)
			metrics.SnapshotPollsTotal.WithLabelValues("panic").Inc()
		}
	}()

	if err := e.Poll(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		e.log.Error("terminal: poll failed, keeping last snapshot", "error", err)
	}
}

// Poll reads on-chain state and USD prices and swaps in a new snapshot. On
// a miner read failure the previous snapshot stays current. Pool, start-time
// and price failures reuse the previous values.
func (e *Engine) Poll(ctx context.Context) error {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	start := e.cfg.Clock.Now()
	defer func() {
		metrics.SnapshotPollDuration.Observe(e.cfg.Clock.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.PollTimeout)
	defer cancel()

	prev := e.snap.Load()

	var (
		miner   model.MinerState
		pool    *model.PoolReserves
		genesis int64
		prices  model.Prices
	)
	if prev != nil {
		pool = prev.Pool
		genesis = prev.GenesisTime
		prices = prev.Prices
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.cfg.Reader.MinerState(gctx, e.cfg.Account)
		if err != nil {
			return fmt.Errorf("read miner: %w", err)
		}
		miner = m
		return nil
	})
	g.Go(func() error {
		p, err := e.cfg.Reader.PoolReserves(gctx, e.cfg.Book.Pair, e.cfg.Book.WETH)
		if err != nil {
			e.log.Warn("terminal: pool read failed", "pair", e.cfg.Book.Pair, "error", err)
			return nil
		}
		pool = &p
		return nil
	})
	if e.cfg.Prices != nil {
		g.Go(func() error {
			p, err := e.cfg.Prices.Prices(gctx)
			if err != nil {
				e.log.Warn("terminal: prices unavailable", "error", err)
				return nil
			}
			prices = p
			return nil
		})
	}
	if genesis == 0 {
		g.Go(func() error {
			t, err := e.cfg.Reader.MinerStartTime(gctx)
			if err != nil {
				e.log.Warn("terminal: miner start time read failed", "error", err)
				return nil
			}
			genesis = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.SnapshotPollsTotal.WithLabelValues("error").Inc()
		return err
	}

	snap := &model.Snapshot{
		ID:          uuid.NewString(),
		Miner:       miner,
		Pool:        pool,
		GenesisTime: genesis,
		Prices:      prices,
		FetchedAt:   e.cfg.Clock.Now(),
	}
	e.snap.Store(snap)
	metrics.SnapshotPollsTotal.WithLabelValues("ok").Inc()
	metrics.CurrentEpoch.Set(float64(miner.EpochID))
	e.readyOnce.Do(func() { close(e.readyCh) })

	if prev == nil || prev.Miner.EpochID != miner.EpochID {
		e.recordGlaze(ctx, snap)
	}
	e.log.Debug("terminal: snapshot updated", "id", snap.ID, "epoch", miner.EpochID, "miner", miner.Miner)
	return nil
}

func (e *Engine) recordGlaze(ctx context.Context, snap *model.Snapshot) {
	m := snap.Miner
	if m.Miner == (common.Address{}) {
		return
	}
	rec := &model.GlazeRecord{
		ID:         uuid.NewString(),
		EpochID:    m.EpochID,
		Miner:      contracts.Normalize(m.Miner),
		URI:        m.URI,
		InitPrice:  m.InitPrice,
		StartTime:  m.StartTime,
		RecordedAt: snap.FetchedAt.UTC(),
	}
	err := e.cfg.Store.RecordGlaze(ctx, rec)
	switch {
	case err == nil:
		metrics.GlazesRecorded.Inc()
		e.log.Info("glaze recorded", "epoch", rec.EpochID, "miner", rec.Miner, "uri", rec.URI)
		if e.cfg.Publisher != nil {
			e.cfg.Publisher.PublishGlaze(*rec)
		}
	case errors.Is(err, store.ErrDuplicate):
	default:
		e.log.Error("terminal: failed to record glaze", "epoch", rec.EpochID, "error", err)
	}
}
