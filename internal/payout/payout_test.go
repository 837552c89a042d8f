package payout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/store"
)

type fakeSender struct {
	txHash string
	err    error
}

func (f *fakeSender) Send(ctx context.Context, address string, netAmountMicro int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.txHash, nil
}

func newTestStoreWithPendingPayout(t *testing.T) (*store.Store, store.Payout) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "faucetd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.CreditBalance(ctx, "0xabc", 5_000_000); err != nil {
		t.Fatalf("CreditBalance: %v", err)
	}
	id, ok, err := st.Withdraw(ctx, "0xabc", 3_000_000, 0)
	if err != nil || !ok {
		t.Fatalf("Withdraw: ok=%v err=%v", ok, err)
	}
	pending, err := st.ListPendingPayouts(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPendingPayouts: %v, %+v", err, pending)
	}
	_ = id
	return st, pending[0]
}

func testLogger() flog.Logger {
	return flog.NewLogger(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchMarksPayoutSentOnSuccess(t *testing.T) {
	st, p := newTestStoreWithPendingPayout(t)
	d := New(st, &fakeSender{txHash: "0xtx"}, 1, time.Minute, 1, metrics.New(), testLogger())

	d.dispatch(context.Background(), p)

	payouts, err := st.ListPayouts(context.Background(), "0xabc")
	if err != nil || len(payouts) != 1 || payouts[0].Status != store.PayoutSent {
		t.Fatalf("expected payout marked sent: %+v, err=%v", payouts, err)
	}
	if payouts[0].TxHash == nil || *payouts[0].TxHash != "0xtx" {
		t.Fatalf("expected tx hash recorded, got %+v", payouts[0].TxHash)
	}
}

func TestDispatchMarksPayoutFailedAfterExhaustingRetries(t *testing.T) {
	st, p := newTestStoreWithPendingPayout(t)
	d := New(st, &fakeSender{err: errors.New("sender unreachable")}, 1, time.Minute, 0, metrics.New(), testLogger())

	d.dispatch(context.Background(), p)

	payouts, err := st.ListPayouts(context.Background(), "0xabc")
	if err != nil || len(payouts) != 1 || payouts[0].Status != store.PayoutFailed {
		t.Fatalf("expected payout marked failed: %+v, err=%v", payouts, err)
	}
}
