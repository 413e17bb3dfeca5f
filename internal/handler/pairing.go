package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/service"
)

// PairCodeResponse is returned by POST /pairings/code.
type PairCodeResponse struct {
	PairingCode string `json:"pairing_code"`
}

// PairRequest is the body of POST /pairings/pair.
type PairRequest struct {
	Code string `json:"code"`
}

// PairResponse is returned by POST /pairings/pair.
type PairResponse struct {
	Message string            `json:"message"`
	Partner model.PartnerInfo `json:"partner"`
}

// PairingHandler serves the /pairings routes. All of them require the
// authentication gate.
type PairingHandler struct {
	pairings *service.PairingService
	logger   *slog.Logger
}

func NewPairingHandler(pairings *service.PairingService, logger *slog.Logger) *PairingHandler {
	return &PairingHandler{
		pairings: pairings,
		logger:   logger,
	}
}

// HandleGenerateCode issues a fresh pairing code for the caller.
//
// HTTP: POST /pairings/code
func (h *PairingHandler) HandleGenerateCode(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	code, err := h.pairings.GenerateCode(r.Context(), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PairCodeResponse{PairingCode: code})
}

// HandlePair links the caller with the holder of the submitted code.
//
// HTTP: POST /pairings/pair  {"code": "ABC234"}
func (h *PairingHandler) HandlePair(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req PairRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	partner, err := h.pairings.Pair(r.Context(), user, req.Code)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PairResponse{
		Message: "Paired successfully",
		Partner: model.NewPartnerInfo(partner),
	})
}

// HandleUnpair dissolves the caller's pairing.
//
// HTTP: POST /pairings/unpair
func (h *PairingHandler) HandleUnpair(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.pairings.Unpair(r.Context(), user); err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Unpaired successfully"})
}

// HandlePartner returns the caller's partner.
//
// HTTP: GET /pairings/partner
func (h *PairingHandler) HandlePartner(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	partner, err := h.pairings.Partner(r.Context(), user)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.NewPartnerInfo(partner))
}
