package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nadfaucet/faucetd/internal/engine"
	"github.com/nadfaucet/faucetd/internal/fconfig"
	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/powcrypto"
	"github.com/nadfaucet/faucetd/internal/ratelimit"
	"github.com/nadfaucet/faucetd/internal/store"
)

func testLogger() flog.Logger {
	return flog.NewLogger(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *store.Store, *engine.Engine) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "faucetd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := fconfig.Defaults()
	cfg.DifficultyBits = 1
	m := metrics.New()
	eng := engine.New(cfg, st, m, testLogger())
	if err := eng.Boot(context.Background()); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	limits, err := ratelimit.NewSet(time.Minute, 1000, time.Minute, 1000)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	s := New(cfg, eng, st, limits, m, testLogger())
	return s, st, eng
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandleChallengeReturnsBlockSnapshot(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/challenge", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["blockNumber"].(float64) != 1 {
		t.Fatalf("expected block 1, got %v", body["blockNumber"])
	}
	if body["seedHex"] == "" {
		t.Fatalf("expected a non-empty seed")
	}
}

func TestHandleSubmitProofRejectsMissingFields(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/submit-proof", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Missing required fields" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestHandleSubmitProofRejectsBadAddress(t *testing.T) {
	s, _, _ := newTestServer(t)
	payload := `{"address":"not-an-address","nonce":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/submit-proof", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Invalid Ethereum address format" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestHandleSubmitProofAcceptsValidShare(t *testing.T) {
	s, _, eng := newTestServer(t)
	address := "0x0000000000000000000000000000000000000abc"

	var nonce string
	for i := 0; i < 10000; i++ {
		candidate := strconv.Itoa(i)
		seedHex := eng.CurrentSeedHex()
		input := powcrypto.CanonicalInput(address, eng.CurrentBlockNumber(), seedHex, candidate)
		digest, _ := powcrypto.Hash(input)
		if powcrypto.MeetsDifficulty(digest, 1) {
			nonce = candidate
			break
		}
	}
	if nonce == "" {
		t.Fatalf("expected to find a passing nonce at difficulty 1 within 10000 tries")
	}

	payload := `{"address":"` + address + `","nonce":"` + nonce + `"}`
	req := httptest.NewRequest(http.MethodPost, "/submit-proof", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["accepted"] != true {
		t.Fatalf("expected accepted=true, got %v", body["accepted"])
	}
}

func TestHandleStatusRequiresAddress(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleStatusReturnsBalance(t *testing.T) {
	s, st, _ := newTestServer(t)
	address := "0x0000000000000000000000000000000000000abc"
	if err := st.CreditBalance(context.Background(), address, 5_000_000); err != nil {
		t.Fatalf("CreditBalance: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/status?address="+address, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["balanceMicro"].(float64) != 5_000_000 {
		t.Fatalf("expected balance 5000000, got %v", body["balanceMicro"])
	}
}

func TestHandleWithdrawRequestRejectsInsufficientBalance(t *testing.T) {
	s, _, _ := newTestServer(t)
	address := "0x0000000000000000000000000000000000000abc"
	payload := `{"address":"` + address + `","amountMicro":2000000000}`
	req := httptest.NewRequest(http.MethodPost, "/withdraw-request", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden && rec.Code != http.StatusBadRequest {
		t.Fatalf("expected a policy rejection, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != "Insufficient balance" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}
}

func TestHandleWithdrawRequestQueuesPayout(t *testing.T) {
	s, st, _ := newTestServer(t)
	address := "0x0000000000000000000000000000000000000abc"
	if err := st.CreditBalance(context.Background(), address, 3_000_000_000); err != nil {
		t.Fatalf("CreditBalance: %v", err)
	}

	payload := `{"address":"` + address + `","amountMicro":2000000000}`
	req := httptest.NewRequest(http.MethodPost, "/withdraw-request", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "queued" {
		t.Fatalf("expected queued status, got %v", body["status"])
	}
}

func TestHandleHealthReportsUptime(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestMetricsEndpointExposesPrometheusFormat(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.metrics.SharesAccepted.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct == "application/json" {
		t.Fatalf("expected Prometheus exposition format, got JSON content type %q", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("faucetd_shares_accepted_total")) {
		t.Fatalf("expected shares_accepted counter in scrape output, got %q", rec.Body.String())
	}
}

func TestMetricsEndpointUnmountedWithoutRegistry(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.metrics = nil

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /metrics to be unmounted without a registry, got %d", rec.Code)
	}
}
