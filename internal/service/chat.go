package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/metrics"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/sse"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

// ChatService is the pure append log for session chat.
type ChatService struct {
	store  store.SessionStore
	broker *sse.Broker
	now    func() time.Time
}

func NewChatService(st store.SessionStore, broker *sse.Broker) *ChatService {
	return &ChatService{
		store:  st,
		broker: broker,
		now:    time.Now,
	}
}

// AppendMessage appends one message and returns it. Messages are never
// mutated or deleted afterwards.
func (s *ChatService) AppendMessage(ctx context.Context, code, senderID, text string) (*model.ChatMessage, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.MissingRequired("text")
	}

	msg := model.ChatMessage{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Text:      text,
		Timestamp: s.now(),
	}

	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		sess.AppendChat(msg)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Session")
		}
		return nil, apperrors.Store(err)
	}

	metrics.ChatMessages.Inc()
	if s.broker != nil {
		data, _ := json.Marshal(msg)
		if pubErr := s.broker.Publish(ctx, code, sse.Event{Type: sse.EventChatMessage, Data: data}); pubErr != nil {
			log.Warn().Err(pubErr).Str("code", code).Msg("failed to publish chat event")
		}
	}

	return &msg, nil
}

// ListMessages returns the full chat log in insertion order.
func (s *ChatService) ListMessages(ctx context.Context, code string) ([]model.ChatMessage, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Session")
		}
		return nil, apperrors.Store(err)
	}
	return session.Chat, nil
}
