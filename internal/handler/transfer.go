package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/service"
)

// transferRequest is the action-dispatched body of POST /api/remote/transfer.
type transferRequest struct {
	Action     string                  `json:"action"`
	Code       string                  `json:"code"`
	TransferID string                  `json:"transferId,omitempty"`
	FileName   string                  `json:"fileName,omitempty"`
	FileSize   int64                   `json:"fileSize,omitempty"`
	Direction  model.TransferDirection `json:"direction,omitempty"`
	Progress   *int                    `json:"progress,omitempty"`
}

type transferResponse struct {
	Success  bool                `json:"success"`
	Transfer *model.FileTransfer `json:"transfer"`
}

type TransferHandler struct {
	transferService *service.TransferService
}

func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

func (h *TransferHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Dispatch)
	r.Get("/", h.ListTransfers)

	return r
}

// POST /api/remote/transfer
func (h *TransferHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	ctx := r.Context()
	var (
		transfer *model.FileTransfer
		err      error
	)

	switch req.Action {
	case "start":
		transfer, err = h.transferService.StartTransfer(ctx, req.Code, req.FileName, req.FileSize, req.Direction)
	case "progress":
		if req.Progress == nil {
			writeError(w, apperrors.MissingRequired("progress"))
			return
		}
		transfer, err = h.transferService.UpdateProgress(ctx, req.Code, req.TransferID, *req.Progress)
	case "failed":
		transfer, err = h.transferService.MarkFailed(ctx, req.Code, req.TransferID)
	default:
		err = apperrors.InvalidInput("action", req.Action)
	}

	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{Success: true, Transfer: transfer})
}

// GET /api/remote/transfer?code=
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	transfers, err := h.transferService.ListTransfers(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if transfers == nil {
		transfers = []model.FileTransfer{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"transfers": transfers,
	})
}
