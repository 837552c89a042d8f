package api

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/nadfaucet/faucetd/internal/ferrors"
)

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"blockNumber":    s.engine.CurrentBlockNumber(),
		"seedHex":        s.engine.CurrentSeedHex(),
		"difficultyBits": s.cfg.DifficultyBits,
		"blockTimeMs":    s.cfg.BlockTimeMS,
		"serverTimeMs":   time.Now().UnixMilli(),
		"msLeft":         s.engine.MsLeft(),
	})
}

type submitProofRequest struct {
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
}

const maxNonceLen = 256

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req submitProofRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Address == "" || req.Nonce == "" {
		writeError(w, ferrors.New(ferrors.Validation, "missing_fields", "Missing required fields"))
		return
	}
	address, err := validateAddress(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(req.Nonce) > maxNonceLen {
		writeError(w, ferrors.New(ferrors.Validation, "invalid_nonce", "Invalid nonce format").WithField("nonce"))
		return
	}

	res, err := s.engine.SubmitShare(r.Context(), address, req.Nonce)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"accepted":        true,
		"blockNumber":     res.BlockNumber,
		"leadingZeroBits": res.LeadingZeroBits,
		"hash":            res.HashHex,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw := r.URL.Query().Get("address")
	if raw == "" {
		writeError(w, ferrors.New(ferrors.Validation, "missing_fields", "Missing required fields"))
		return
	}
	address, err := validateAddress(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	balance, err := s.store.GetBalance(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"blockNumber":      s.engine.CurrentBlockNumber(),
		"seedHex":          s.engine.CurrentSeedHex(),
		"difficultyBits":   s.cfg.DifficultyBits,
		"poolARewardMicro": s.cfg.PoolAMicro(),
		"poolBRewardMicro": s.cfg.PoolBMicro(),
		"balanceMicro":     balance,
	})
}

type withdrawRequest struct {
	Address     string `json:"address"`
	AmountMicro int64  `json:"amountMicro"`
}

func (s *Server) handleWithdrawRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req withdrawRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Address == "" || req.AmountMicro <= 0 {
		writeError(w, ferrors.New(ferrors.Validation, "missing_fields", "Missing required fields"))
		return
	}
	address, err := validateAddress(req.Address)
	if err != nil {
		writeError(w, err)
		return
	}

	fee := s.cfg.WithdrawFeeMicro()
	if req.AmountMicro <= fee {
		writeError(w, ferrors.New(ferrors.Validation, "amount_too_small", "Withdrawal amount must exceed the fee").WithField("amountMicro"))
		return
	}
	net := req.AmountMicro - fee

	payoutID, ok, err := s.store.Withdraw(r.Context(), address, net, fee)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, ferrors.New(ferrors.Policy, "insufficient_balance", "Insufficient balance"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"status":    "queued",
		"payoutId":  payoutID,
		"netAmount": net,
		"fee":       fee,
	})
}

func (s *Server) handlePayouts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pending, err := s.store.ListPendingPayouts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "payouts": pending})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"blockNumber": s.engine.CurrentBlockNumber(),
		"uptime":      time.Since(s.startedAt).String(),
		"blockProcessor": map[string]any{
			"closing": s.engine.IsClosing(),
			"msLeft":  s.engine.MsLeft(),
		},
		"config": map[string]any{
			"blockTimeMs":    s.cfg.BlockTimeMS,
			"difficultyBits": s.cfg.DifficultyBits,
			"maxSharesPB":    s.cfg.MaxSharesPB,
		},
	})
}
