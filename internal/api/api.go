// Package api exposes faucetd's HTTP surface: /challenge, /submit-proof,
// /status, /withdraw-request, /payouts, /health and /metrics, routed with
// julienschmidt/httprouter. Every JSON response is an envelope carrying
// an "ok" boolean; every error response translates a tagged
// internal/ferrors.Error into a status code and a client-safe message,
// never an internal error string. /metrics is the one exception: it
// answers in Prometheus exposition format for operator scraping, not JSON.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nadfaucet/faucetd/internal/engine"
	"github.com/nadfaucet/faucetd/internal/fconfig"
	"github.com/nadfaucet/faucetd/internal/ferrors"
	flog "github.com/nadfaucet/faucetd/internal/log"
	"github.com/nadfaucet/faucetd/internal/metrics"
	"github.com/nadfaucet/faucetd/internal/powcrypto"
	"github.com/nadfaucet/faucetd/internal/ratelimit"
	"github.com/nadfaucet/faucetd/internal/store"
)

// Server wires the engine, storage and rate limiters to HTTP handlers.
type Server struct {
	cfg       fconfig.Config
	engine    *engine.Engine
	store     *store.Store
	limits    *ratelimit.Set
	metrics   *metrics.Metrics
	log       flog.Logger
	startedAt time.Time
}

// New builds a Server. Call Handler to obtain the http.Handler to serve.
func New(cfg fconfig.Config, eng *engine.Engine, st *store.Store, limits *ratelimit.Set, m *metrics.Metrics, logger flog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		engine:    eng,
		store:     st,
		limits:    limits,
		metrics:   m,
		log:       logger.New("component", "api"),
		startedAt: time.Now(),
	}
}

// Handler builds the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.GET("/challenge", s.withGeneralLimit(s.handleChallenge))
	r.POST("/submit-proof", s.withSubmitLimit(s.handleSubmitProof))
	r.GET("/status", s.withGeneralLimit(s.handleStatus))
	r.POST("/withdraw-request", s.withGeneralLimit(s.handleWithdrawRequest))
	r.GET("/payouts", s.withGeneralLimit(s.handlePayouts))
	r.GET("/health", s.withGeneralLimit(s.handleHealth))
	if s.metrics != nil {
		r.GET("/metrics", s.withGeneralLimit(wrapHTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))))
	}
	return r
}

func wrapHTTPHandler(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func (s *Server) withGeneralLimit(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if s.limits != nil && !s.limits.General.Allow(clientIP(r)) {
			if s.metrics != nil {
				s.metrics.RateLimitRejects.WithLabelValues("general").Inc()
			}
			writeError(w, ferrors.New(ferrors.Policy, "rate_limited", "Too many requests").WithStatus(http.StatusTooManyRequests))
			return
		}
		next(w, r, p)
	}
}

func (s *Server) withSubmitLimit(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if s.limits != nil && !s.limits.General.Allow(clientIP(r)) {
			if s.metrics != nil {
				s.metrics.RateLimitRejects.WithLabelValues("general").Inc()
			}
			writeError(w, ferrors.New(ferrors.Policy, "rate_limited", "Too many requests").WithStatus(http.StatusTooManyRequests))
			return
		}
		if s.limits != nil && !s.limits.Submit.Allow(clientIP(r)) {
			if s.metrics != nil {
				s.metrics.RateLimitRejects.WithLabelValues("submit").Inc()
			}
			writeError(w, ferrors.New(ferrors.Policy, "rate_limited", "Too many requests").WithStatus(http.StatusTooManyRequests))
			return
		}
		next(w, r, p)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	fe, ok := ferrors.AsError(err)
	if !ok {
		fe = ferrors.New(ferrors.Fatal, "internal_error", "internal error")
	}
	writeJSON(w, fe.HTTPStatus(), map[string]any{"ok": false, "error": fe.Message, "code": fe.Code})
}

func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ferrors.New(ferrors.Validation, "malformed_json", "Missing required fields")
	}
	return nil
}

func validateAddress(raw string) (string, error) {
	addr, ok := powcrypto.ValidateAddress(raw)
	if !ok {
		return "", ferrors.New(ferrors.Validation, "invalid_address", "Invalid Ethereum address format").WithField("address")
	}
	return addr, nil
}
