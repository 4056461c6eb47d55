package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/service"
)

// signalRequest is the action-dispatched body of POST /api/remote/signal.
// Offer, answer and candidate payloads are relayed opaquely.
type signalRequest struct {
	Action    string          `json:"action"`
	Code      string          `json:"code"`
	From      model.Role      `json:"from"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type SignalingHandler struct {
	signalingService *service.SignalingService
}

func NewSignalingHandler(signalingService *service.SignalingService) *SignalingHandler {
	return &SignalingHandler{
		signalingService: signalingService,
	}
}

func (h *SignalingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Dispatch)
	r.Get("/", h.Poll)

	return r
}

// POST /api/remote/signal
func (h *SignalingHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	ctx := r.Context()
	var err error

	switch req.Action {
	case "offer":
		err = h.signalingService.SubmitOffer(ctx, req.Code, req.Offer, req.From)
	case "answer":
		err = h.signalingService.SubmitAnswer(ctx, req.Code, req.Answer, req.From)
	case "ice-candidate":
		err = h.signalingService.AddCandidate(ctx, req.Code, req.Candidate, req.From)
	default:
		err = apperrors.InvalidInput("action", req.Action)
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GET /api/remote/signal?code=&from=host|client
func (h *SignalingHandler) Poll(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	from := model.Role(r.URL.Query().Get("from"))

	result, err := h.signalingService.Poll(r.Context(), code, from)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"offer":      result.Offer,
		"answer":     result.Answer,
		"candidates": result.Candidates,
	})
}
