package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/allinone-studio/remote-support-server/internal/config"
	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/metrics"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/sse"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

// CreateSessionParams carries the host's create request. Permissions is a
// partial map; flags it omits stay false. When AutoApprove is set the map is
// ignored in favor of the trusted preset.
type CreateSessionParams struct {
	HostID      string
	Permissions map[string]bool
	AutoApprove bool
}

// UpdateSessionParams carries any subset of the mutable session fields.
// Nil fields are left untouched; Permissions merges per key.
type UpdateSessionParams struct {
	Permissions map[string]bool
	Status      *model.SessionStatus
	ChatMessage *ChatMessageParams
}

type ChatMessageParams struct {
	SenderID string
	Text     string
}

// SessionService implements the pairing state machine over the store.
type SessionService struct {
	store       store.SessionStore
	broker      *sse.Broker
	ttl         time.Duration
	exposeDebug bool
	now         func() time.Time
}

func NewSessionService(st store.SessionStore, broker *sse.Broker, ttl time.Duration, exposeDebug bool) *SessionService {
	return &SessionService{
		store:       st,
		broker:      broker,
		ttl:         ttl,
		exposeDebug: exposeDebug,
		now:         time.Now,
	}
}

// Create registers a new pending session under a freshly generated code,
// retrying generation on the rare collision with a live session.
func (s *SessionService) Create(ctx context.Context, params CreateSessionParams) (*model.Session, error) {
	hostID := params.HostID
	if hostID == "" {
		hostID = uuid.NewString()
	}

	permissions := model.PermissionsFromMap(params.Permissions)
	if params.AutoApprove {
		permissions = model.TrustedPermissions()
	}

	now := s.now()
	for attempt := 0; attempt < config.PairingCodeMaxAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "could not generate a connection code", err)
		}

		session := &model.Session{
			ID:          uuid.NewString(),
			Code:        code,
			HostID:      hostID,
			Status:      model.SessionStatusPending,
			AutoApprove: params.AutoApprove,
			Permissions: permissions,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}

		err = s.store.Create(ctx, session)
		if errors.Is(err, store.ErrCodeExists) {
			continue
		}
		if err != nil {
			return nil, apperrors.Store(err)
		}

		metrics.SessionsCreated.Inc()
		s.updateActiveGauge(ctx)

		log.Info().
			Str("sessionId", session.ID).
			Str("code", session.Code).
			Bool("autoApprove", session.AutoApprove).
			Msg("session created")

		return session, nil
	}

	return nil, apperrors.Internal("could not allocate a unique connection code")
}

// Join pairs a client with the session for the given code. The first join
// flips the session to connected and records the connect time. Joining again
// while connected or paused succeeds without disturbing chat or signaling
// history; joining an ended session is rejected.
func (s *SessionService) Join(ctx context.Context, code, clientID string) (*model.Session, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	var firstJoin bool
	session, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		if sess.Status == model.SessionStatusEnded {
			return apperrors.SessionEnded()
		}

		if sess.ClientID == "" {
			sess.ClientID = clientID
			firstJoin = true
		}
		if sess.Status == model.SessionStatusPending || sess.Status == model.SessionStatusPaused {
			sess.Status = model.SessionStatusConnected
		}
		if sess.ClientConnectedAt == nil {
			now := s.now()
			sess.ClientConnectedAt = &now
		}
		sess.Touch(s.now(), s.ttl)
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(ctx, code, err)
	}

	if firstJoin {
		metrics.SessionsJoined.Inc()
		s.publish(ctx, code, sse.EventPeerJoined, map[string]any{
			"clientId": session.ClientID,
			"status":   session.Status,
		})
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("code", code).
		Str("clientId", session.ClientID).
		Bool("rejoin", !firstJoin).
		Msg("client joined session")

	return session, nil
}

// Update applies any subset of {permissions, status, chat append} in one
// atomic store round trip.
func (s *SessionService) Update(ctx context.Context, code string, params UpdateSessionParams) (*model.Session, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	if params.Status != nil && !params.Status.Valid() {
		return nil, apperrors.InvalidInput("status", string(*params.Status))
	}

	var (
		statusChanged bool
		appended      *model.ChatMessage
	)
	session, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		if params.Status != nil && *params.Status != sess.Status {
			if !sess.Status.CanTransition(*params.Status) {
				return apperrors.Conflict(fmt.Sprintf(
					"cannot transition session from %s to %s", sess.Status, *params.Status))
			}
			if *params.Status == model.SessionStatusEnded {
				sess.End(s.now())
			} else {
				sess.Status = *params.Status
			}
			statusChanged = true
		}

		if params.Permissions != nil {
			sess.Permissions.Merge(params.Permissions)
		}

		if params.ChatMessage != nil {
			msg := model.ChatMessage{
				ID:        uuid.NewString(),
				SenderID:  params.ChatMessage.SenderID,
				Text:      params.ChatMessage.Text,
				Timestamp: s.now(),
			}
			sess.AppendChat(msg)
			appended = &msg
		}

		if sess.Status != model.SessionStatusEnded {
			sess.Touch(s.now(), s.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(ctx, code, err)
	}

	if statusChanged {
		if session.Status == model.SessionStatusEnded {
			metrics.SessionsEnded.Inc()
			s.updateActiveGauge(ctx)
		}
		s.publish(ctx, code, sse.EventStatusChanged, map[string]any{
			"status":          session.Status,
			"durationSeconds": session.DurationSeconds,
		})
	}
	if appended != nil {
		metrics.ChatMessages.Inc()
		s.publish(ctx, code, sse.EventChatMessage, appended)
	}

	log.Debug().
		Str("sessionId", session.ID).
		Str("code", code).
		Str("status", string(session.Status)).
		Msg("session updated")

	return session, nil
}

// Get returns the session for a code, rejecting malformed codes before the
// store is consulted.
func (s *SessionService) Get(ctx context.Context, code string) (*model.Session, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, s.wrapStoreErr(ctx, code, err)
	}
	return session, nil
}

func (s *SessionService) List(ctx context.Context) ([]model.Session, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return sessions, nil
}

func (s *SessionService) Count(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, apperrors.Store(err)
	}
	return count, nil
}

// wrapStoreErr translates store misses into not-found responses carrying
// diagnostic context. The live code list is attached only when the operator
// enabled debug exposure; counters are always safe to return.
func (s *SessionService) wrapStoreErr(ctx context.Context, code string, err error) error {
	if !errors.Is(err, store.ErrNotFound) {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Store(err)
	}

	total, countErr := s.store.Count(ctx)
	if countErr != nil {
		total = -1
	}

	debug := map[string]any{
		"requestedCode": code,
		"totalSessions": total,
	}
	if s.exposeDebug {
		codes := []string{}
		if sessions, listErr := s.store.List(ctx); listErr == nil {
			for _, sess := range sessions {
				codes = append(codes, sess.Code)
			}
		}
		debug["availableCodes"] = codes
	}

	log.Warn().
		Str("code", code).
		Int("totalSessions", total).
		Msg("unknown connection code")

	return apperrors.NotFound("Session").WithDetails(debug)
}

func (s *SessionService) publish(ctx context.Context, code, eventType string, data any) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal sse event")
		return
	}
	if err := s.broker.Publish(ctx, code, sse.Event{Type: eventType, Data: payload}); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to publish sse event")
	}
}

// updateActiveGauge counts live sessions only; ended ones linger in the
// store until the cleanup job reaps them and must not inflate the gauge.
func (s *SessionService) updateActiveGauge(ctx context.Context) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return
	}
	active := 0
	for _, sess := range sessions {
		if sess.Status != model.SessionStatusEnded {
			active++
		}
	}
	metrics.ActiveSessions.Set(float64(active))
}

// generateCode draws a fresh 6-digit connection code from crypto/rand.
// Uniqueness against live sessions is enforced by the store's atomic claim.
func generateCode() (string, error) {
	chars := []byte(config.PairingCodeAlphabet)
	code := make([]byte, model.PairingCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", fmt.Errorf("reading random digit: %w", err)
		}
		code[i] = chars[n.Int64()]
	}
	return string(code), nil
}
