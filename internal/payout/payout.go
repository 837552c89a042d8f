// Package payout runs faucetd's background withdrawal dispatcher: it
// polls the pending payout queue, hands each payout to a bounded worker
// pool that calls an external sender, and retries sender failures with
// capped exponential backoff before giving up and marking the payout
// failed for an operator to reconcile by hand.
package payout

import (
	"context"
	"time"

	"github.com/JekaMas/workerpool"
	"github.com/cenkalti/backoff/v4"
	mapset "github.com/deckarep/golang-set/v2"

	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/store"
)

// Sender is the external capability that actually moves funds. It is
// supplied by the caller (an on-chain client, a sandbox stub in tests)
// so this package never talks to a blockchain directly.
type Sender interface {
	Send(ctx context.Context, address string, netAmountMicro int64) (txHash string, err error)
}

// Dispatcher polls the store for pending payouts and drives them
// through Sender on a bounded worker pool.
type Dispatcher struct {
	store       *store.Store
	sender      Sender
	pool        *workerpool.WorkerPool
	inFlight    mapset.Set[string]
	pollEvery   time.Duration
	maxAttempts int
	log         flog.Logger
	metrics     *metrics.Metrics
}

// New constructs a Dispatcher with workers concurrent sends in flight.
func New(st *store.Store, sender Sender, workers int, pollEvery time.Duration, maxAttempts int, m *metrics.Metrics, logger flog.Logger) *Dispatcher {
	return &Dispatcher{
		store:       st,
		sender:      sender,
		pool:        workerpool.New(workers),
		inFlight:    mapset.NewSet[string](),
		pollEvery:   pollEvery,
		maxAttempts: maxAttempts,
		log:         logger.New("component", "payout"),
		metrics:     m,
	}
}

// Run polls until ctx is canceled, then drains in-flight sends before
// returning.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.pool.StopWait()
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	pending, err := d.store.ListPendingPayouts(ctx)
	if err != nil {
		d.log.Error("failed to list pending payouts", "err", err)
		return
	}
	for _, p := range pending {
		if !d.inFlight.Add(p.ID) {
			continue // a previous poll's dispatch is still running
		}
		p := p
		d.pool.Submit(func() {
			defer d.inFlight.Remove(p.ID)
			d.dispatch(ctx, p)
		})
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, p store.Payout) {
	var txHash string
	operation := func() error {
		hash, err := d.sender.Send(ctx, p.Address, p.AmountMicro)
		if err != nil {
			return err
		}
		txHash = hash
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(d.maxAttempts))
	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	if err != nil {
		d.log.Error("payout send failed after retries", "payoutId", p.ID, "address", p.Address, "err", err)
		if _, setErr := d.store.SetPayoutStatus(ctx, p.ID, store.PayoutFailed, nil); setErr != nil {
			d.log.Error("failed to mark payout failed", "payoutId", p.ID, "err", setErr)
		}
		if d.metrics != nil {
			d.metrics.PayoutOutcomes.WithLabelValues("failed").Inc()
		}
		return
	}

	if _, err := d.store.SetPayoutStatus(ctx, p.ID, store.PayoutSent, &txHash); err != nil {
		d.log.Error("failed to mark payout sent", "payoutId", p.ID, "err", err)
	}
	if d.metrics != nil {
		d.metrics.PayoutOutcomes.WithLabelValues("sent").Inc()
	}
	d.log.Info("payout sent", "payoutId", p.ID, "address", p.Address, "txHash", txHash)
}
