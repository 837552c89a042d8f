package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nadfaucet/faucetd/internal/fconfig"
	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "faucetd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := fconfig.Defaults()
	cfg.DifficultyBits = 0 // any hash qualifies, so tests don't need to mine
	cfg.MaxSharesPB = 2
	cfg.PoolARewardTokens = 50
	cfg.PoolBRewardTokens = 50
	cfg.PoolCRewardTokens = 0

	e := New(cfg, st, metrics.New(), flog.NewLogger(slog.NewTextHandler(io.Discard, nil)))
	if err := e.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return e, st
}

func TestBootInitializesBlockOneOnColdStart(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.CurrentBlockNumber() != 1 {
		t.Fatalf("expected block 1 on cold start, got %d", e.CurrentBlockNumber())
	}
	if e.CurrentSeedHex() == "" {
		t.Fatalf("expected a non-empty seed")
	}
}

func TestMsLeftNeverNegative(t *testing.T) {
	e, _ := newTestEngine(t)
	e.blockStartNano.Store(time.Now().Add(-time.Hour).UnixNano())
	if e.MsLeft() != 0 {
		t.Fatalf("expected MsLeft floored at 0, got %d", e.MsLeft())
	}
}

func TestSubmitShareAcceptsAndRejectsDuplicate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.SubmitShare(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "nonce-1")
	if err != nil {
		t.Fatalf("SubmitShare: %v", err)
	}
	if res.BlockNumber != 1 {
		t.Fatalf("expected block 1, got %d", res.BlockNumber)
	}

	_, err = e.SubmitShare(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "nonce-1")
	if err == nil {
		t.Fatalf("expected duplicate submission to be rejected")
	}
}

func TestSubmitShareRejectsOverQuota(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	addr := "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	for i := 0; i < e.cfg.MaxSharesPB; i++ {
		if _, err := e.SubmitShare(ctx, addr, string(rune('a'+i))); err != nil {
			t.Fatalf("SubmitShare #%d: %v", i, err)
		}
	}
	if _, err := e.SubmitShare(ctx, addr, "one-too-many"); err == nil {
		t.Fatalf("expected the submission past quota to be rejected")
	}
}

func TestTickFinalizesAndAdvancesBlock(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	addr := "0xcccccccccccccccccccccccccccccccccccccccc"

	// Two shares: as sole Pool B winner the miner's Pool A weight is
	// floor(2/2) = 1, so it also takes all of Pool A (one share would halve
	// to 0 and leave Pool A unpaid).
	for _, nonce := range []string{"n1", "n2"} {
		if _, err := e.SubmitShare(ctx, addr, nonce); err != nil {
			t.Fatalf("SubmitShare: %v", err)
		}
	}

	e.tick(ctx)

	if e.CurrentBlockNumber() != 2 {
		t.Fatalf("expected block to advance to 2, got %d", e.CurrentBlockNumber())
	}
	bal, err := st.GetBalance(ctx, addr)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != e.cfg.PoolAMicro()+e.cfg.PoolBMicro() {
		t.Fatalf("expected the sole miner to take both pools, got %d", bal)
	}
	b, err := st.GetBlock(ctx, 1)
	if err != nil || b.ProcessedAt == nil {
		t.Fatalf("expected block 1 marked processed: %+v, err=%v", b, err)
	}
}

func TestTickOnEmptyBlockIsNoopExceptProcessedMark(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	e.tick(ctx)

	b, err := st.GetBlock(ctx, 1)
	if err != nil || b.ProcessedAt == nil {
		t.Fatalf("expected empty block 1 marked processed: %+v, err=%v", b, err)
	}
	if e.CurrentBlockNumber() != 2 {
		t.Fatalf("expected advance to block 2 even with no shares, got %d", e.CurrentBlockNumber())
	}
}
