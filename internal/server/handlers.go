package server

import (
	"encoding/json"
	"net/http"

	"github.com/freemoonfaucet/gas-faucet/internal/faucet"
)

type retrieveRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type retrieveResponse struct {
	TxHash string `json:"txHash"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HttpServer) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJson(w, http.StatusMethodNotAllowed, &errorResponse{Error: "method not allowed"})
		return
	}

	body := &retrieveRequest{}
	if err := json.NewDecoder(r.Body).Decode(body); err != nil || body.WalletAddress == "" {
		writeJson(w, http.StatusBadRequest, &errorResponse{Error: "request body must include walletAddress"})
		return
	}

	result, err := s.coordinator.RequestClaim(r.Context(), &faucet.ClaimRequest{
		WalletAddress: body.WalletAddress,
		ForwardedFor:  r.Header.Get("X-Forwarded-For"),
		RemoteAddr:    r.RemoteAddr,
	})
	if err != nil {
		claimErr := faucet.AsClaimError(err)
		writeJson(w, http.StatusBadRequest, &errorResponse{Error: claimErr.Message})
		return
	}

	writeJson(w, http.StatusOK, &retrieveResponse{
		TxHash: result.TxHash,
		Status: result.Message,
	})
}

func (s *HttpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJson(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
