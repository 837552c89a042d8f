package engine

import (
	"context"
	"time"

	"github.com/nadfaucet/faucetd/internal/ferrors"
	"github.com/nadfaucet/faucetd/internal/powcrypto"
)

// SubmitResult carries everything /submit-proof needs to answer a
// successful submission.
type SubmitResult struct {
	BlockNumber     uint64
	LeadingZeroBits int
	HashHex         string
}

// SubmitShare performs the PoW check and share insert against whatever
// block is current at the moment of the call (spec.md §4.5 steps 4-7).
// It holds the engine mutex in read mode across the whole
// snapshot-to-insert window: a tick can't close the block out from
// under a submission already past its difficulty check, because the
// tick needs the write lock to do so.
func (e *Engine) SubmitShare(ctx context.Context, address, nonce string) (*SubmitResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	blockNumber := e.CurrentBlockNumber()
	seedHex := e.CurrentSeedHex()

	count, err := e.store.ShareCount(ctx, blockNumber, address)
	if err != nil {
		return nil, err
	}
	if count >= e.cfg.MaxSharesPB {
		if e.metrics != nil {
			e.metrics.SharesRejected.WithLabelValues("quota_exceeded").Inc()
		}
		return nil, ferrors.New(ferrors.Policy, "quota_exceeded", "Maximum shares per block exceeded").WithStatus(429)
	}

	input := powcrypto.CanonicalInput(address, blockNumber, seedHex, nonce)
	digest, hashHex := powcrypto.Hash(input)
	bits := powcrypto.LeadingZeroBits(digest)
	if !powcrypto.MeetsDifficulty(digest, e.cfg.DifficultyBits) {
		if e.metrics != nil {
			e.metrics.SharesRejected.WithLabelValues("insufficient_pow").Inc()
		}
		return nil, ferrors.New(ferrors.Policy, "insufficient_pow", "Insufficient proof-of-work")
	}

	ok, err := e.store.InsertShare(ctx, blockNumber, address, nonce, hashHex, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		if e.metrics != nil {
			e.metrics.SharesRejected.WithLabelValues("duplicate").Inc()
		}
		return nil, ferrors.New(ferrors.Conflict, "duplicate_share", "Duplicate share")
	}

	if e.metrics != nil {
		e.metrics.SharesAccepted.Inc()
	}
	return &SubmitResult{BlockNumber: blockNumber, LeadingZeroBits: bits, HashHex: hashHex}, nil
}
