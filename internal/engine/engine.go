// Package engine implements faucetd's block epoch state machine: a
// single Open/Closing cycle driven by a recompute-from-now timer, with
// atomically-readable snapshot fields so request handlers never block
// on the tick and the tick never blocks on requests longer than a
// single share insert.
package engine

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadfaucet/faucetd/internal/fconfig"
	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/powcrypto"
	"github.com/nadfaucet/faucetd/internal/reward"
	"github.com/nadfaucet/faucetd/internal/store"
)

// state values for the engine's own small state machine.
const (
	stateOpen int32 = iota
	stateClosing
)

const metaKeyBlockNumber = "current_block_number"
const metaKeySeedHex = "current_seed_hex"

// Engine owns the block epoch clock. Handlers read its snapshot fields
// (CurrentBlockNumber, CurrentSeedHex, MsLeft) without blocking; a
// single background goroutine drives Tick on a recomputed timer.
//
// The "engine mutex" (mu) is held in write mode only across
// finalization and in read mode by SubmitShare across the
// snapshot-to-insert window, per SPEC_FULL.md §5: a tick cannot
// interleave with a share insert that already committed to a block
// number, and a flood of concurrent submissions never blocks on each
// other, only on a tick in progress.
type Engine struct {
	cfg     fconfig.Config
	store   *store.Store
	metrics *metrics.Metrics
	log     flog.Logger

	mu    sync.RWMutex
	state atomic.Int32

	blockNumber    atomic.Uint64
	seedHex        atomic.Pointer[string]
	blockStartNano atomic.Int64

	selector reward.Selector

	timer *time.Timer
	stop  chan struct{}
	done  chan struct{}
}

// New constructs an Engine. Call Boot before Run.
func New(cfg fconfig.Config, st *store.Store, m *metrics.Metrics, logger flog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    st,
		metrics:  m,
		log:      logger.New("component", "engine"),
		selector: reward.DefaultSelector,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Boot loads the current block number and seed from meta, initializing
// block 1 with a fresh seed on a cold start, and records the epoch
// start time. It must be called exactly once, before Run.
func (e *Engine) Boot(ctx context.Context) error {
	numStr, ok, err := e.store.GetMeta(ctx, metaKeyBlockNumber)
	if err != nil {
		return err
	}
	if !ok {
		seed, err := powcrypto.NewSeed()
		if err != nil {
			return err
		}
		if err := e.store.InsertBlock(ctx, 1, seed); err != nil {
			return err
		}
		if err := e.persistMeta(ctx, 1, seed); err != nil {
			return err
		}
		e.setSnapshot(1, seed, time.Now())
		e.log.Info("booted fresh", "blockNumber", 1)
		return nil
	}

	seed, _, err := e.store.GetMeta(ctx, metaKeySeedHex)
	if err != nil {
		return err
	}
	blockNumber, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return err
	}
	e.setSnapshot(blockNumber, seed, time.Now())
	e.log.Info("booted from meta", "blockNumber", blockNumber)
	return nil
}

func (e *Engine) persistMeta(ctx context.Context, blockNumber uint64, seedHex string) error {
	if err := e.store.SetMeta(ctx, metaKeyBlockNumber, strconv.FormatUint(blockNumber, 10)); err != nil {
		return err
	}
	return e.store.SetMeta(ctx, metaKeySeedHex, seedHex)
}

func (e *Engine) setSnapshot(blockNumber uint64, seedHex string, startedAt time.Time) {
	e.blockNumber.Store(blockNumber)
	e.seedHex.Store(&seedHex)
	e.blockStartNano.Store(startedAt.UnixNano())
	if e.metrics != nil {
		e.metrics.BlockNumber.Set(float64(blockNumber))
	}
}

// CurrentBlockNumber returns the block currently open for shares.
func (e *Engine) CurrentBlockNumber() uint64 { return e.blockNumber.Load() }

// CurrentSeedHex returns the seed of the block currently open for
// shares.
func (e *Engine) CurrentSeedHex() string {
	p := e.seedHex.Load()
	if p == nil {
		return ""
	}
	return *p
}

// BlockStartTime returns when the current block opened.
func (e *Engine) BlockStartTime() time.Time {
	return time.Unix(0, e.blockStartNano.Load())
}

// IsClosing reports whether a tick is currently finalizing a block.
func (e *Engine) IsClosing() bool { return e.state.Load() == stateClosing }

// MsLeft returns the milliseconds remaining in the current block,
// floored at zero.
func (e *Engine) MsLeft() int64 {
	elapsed := time.Since(e.BlockStartTime()).Milliseconds()
	left := e.cfg.BlockTimeMS - elapsed
	if left < 0 {
		return 0
	}
	return left
}

// Run drives the tick loop until ctx is canceled or Stop is called. It
// recomputes the delay to the next tick from time.Now() every time, so
// scheduling skew never compounds.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	e.timer = time.NewTimer(e.nextDelay())
	defer e.timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-e.timer.C:
			e.tick(ctx)
			e.timer.Reset(e.nextDelay())
		}
	}
}

func (e *Engine) nextDelay() time.Duration {
	d := time.Until(e.BlockStartTime().Add(e.cfg.BlockTime()))
	if d < 0 {
		return 0
	}
	return d
}

// Stop halts the tick loop and waits for Run to return.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

