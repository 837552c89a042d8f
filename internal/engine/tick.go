package engine

import (
	"context"
	"time"

	"github.com/nadfaucet/faucetd/internal/powcrypto"
	"github.com/nadfaucet/faucetd/internal/reward"
)

// tick finalizes the current block and advances to the next one. It
// holds the engine mutex in write mode for the duration, which is what
// guarantees a share accepted under the old block number can never be
// attributed to the new one (and vice versa).
//
// A finalization failure is logged and swallowed rather than retried:
// stalling the epoch clock would back up every subsequent block behind
// it, which is worse than losing one block's rewards to an operator to
// reconcile by hand.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(stateClosing)
	defer e.state.Store(stateOpen)

	start := time.Now()
	blockNumber := e.CurrentBlockNumber()

	if err := e.finalize(ctx, blockNumber); err != nil {
		e.log.Error("block finalization failed, advancing anyway", "blockNumber", blockNumber, "err", err)
	}
	if e.metrics != nil {
		e.metrics.BlockCloseDur.Observe(time.Since(start).Seconds())
	}

	next := blockNumber + 1
	seed, err := powcrypto.NewSeed()
	if err != nil {
		e.log.Crit("failed to generate next block seed", "err", err)
		seed = e.CurrentSeedHex()
	}
	if err := e.store.InsertBlock(ctx, next, seed); err != nil {
		e.log.Error("failed to insert next block row", "blockNumber", next, "err", err)
	}
	if err := e.persistMeta(ctx, next, seed); err != nil {
		e.log.Error("failed to persist engine meta", "blockNumber", next, "err", err)
	}

	now := time.Now()
	e.setSnapshot(next, seed, now)
	e.log.Info("block advanced", "blockNumber", next)
}

func (e *Engine) finalize(ctx context.Context, blockNumber uint64) error {
	shares, err := e.store.SharesForBlock(ctx, blockNumber)
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		return e.store.MarkBlockProcessed(ctx, blockNumber, time.Now())
	}

	sharesByAddress := make(map[string]uint64, len(shares))
	for _, sh := range shares {
		sharesByAddress[sh.Address]++
	}

	rewards, err := reward.Calculate(sharesByAddress, e.cfg.PoolAMicro(), e.cfg.PoolBMicro(), e.cfg.PoolCMicro(), e.selector)
	if err != nil {
		return err
	}

	if err := e.store.ApplyBlockFinalization(ctx, blockNumber, time.Now(), rewards); err != nil {
		return err
	}
	if e.metrics != nil {
		var total int64
		for _, v := range rewards {
			total += v
		}
		e.metrics.PoolPaidMicro.WithLabelValues("block_total").Add(float64(total))
	}
	return nil
}
