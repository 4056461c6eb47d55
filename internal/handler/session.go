package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/service"
)

// sessionRequest is the action-dispatched body of POST /api/remote/session.
type sessionRequest struct {
	Action      string               `json:"action"`
	Code        string               `json:"code,omitempty"`
	HostID      string               `json:"hostId,omitempty"`
	ClientID    string               `json:"clientId,omitempty"`
	Permissions map[string]bool      `json:"permissions,omitempty"`
	AutoApprove bool                 `json:"autoApprove,omitempty"`
	Status      *model.SessionStatus `json:"status,omitempty"`
	ChatMessage *chatMessageRequest  `json:"chatMessage,omitempty"`
}

type chatMessageRequest struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type sessionResponse struct {
	Success bool           `json:"success"`
	Session *model.Session `json:"session"`
}

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Dispatch)
	r.Get("/", h.GetSession)

	return r
}

// POST /api/remote/session
func (h *SessionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	switch req.Action {
	case "create":
		h.create(w, r, req)
	case "join":
		h.join(w, r, req)
	case "update":
		h.update(w, r, req)
	default:
		writeError(w, apperrors.InvalidInput("action", req.Action))
	}
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request, req sessionRequest) {
	session, err := h.sessionService.Create(r.Context(), service.CreateSessionParams{
		HostID:      req.HostID,
		Permissions: req.Permissions,
		AutoApprove: req.AutoApprove,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (h *SessionHandler) join(w http.ResponseWriter, r *http.Request, req sessionRequest) {
	session, err := h.sessionService.Join(r.Context(), req.Code, req.ClientID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (h *SessionHandler) update(w http.ResponseWriter, r *http.Request, req sessionRequest) {
	params := service.UpdateSessionParams{
		Permissions: req.Permissions,
		Status:      req.Status,
	}
	if req.ChatMessage != nil {
		params.ChatMessage = &service.ChatMessageParams{
			SenderID: req.ChatMessage.SenderID,
			Text:     req.ChatMessage.Text,
		}
	}

	session, err := h.sessionService.Update(r.Context(), req.Code, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

// GET /api/remote/session?code=
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	session, err := h.sessionService.Get(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}
