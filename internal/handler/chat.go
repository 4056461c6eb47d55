package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/service"
)

type chatRequest struct {
	Code     string `json:"code"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type chatResponse struct {
	Success bool               `json:"success"`
	Message *model.ChatMessage `json:"message"`
}

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.AppendMessage)
	r.Get("/", h.ListMessages)

	return r
}

// POST /api/remote/chat
func (h *ChatHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	message, err := h.chatService.AppendMessage(r.Context(), req.Code, req.SenderID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Message: message})
}

// GET /api/remote/chat?code=
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")

	messages, err := h.chatService.ListMessages(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"messages": messages,
	})
}
