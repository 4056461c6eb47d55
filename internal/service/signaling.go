package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/metrics"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/sse"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

// PollResult is what one side sees when it polls the mailbox. A missing
// offer or answer is an absence, never an error; sequencing is the polling
// loop's problem.
type PollResult struct {
	Offer      *model.SessionDescription `json:"offer,omitempty"`
	Answer     *model.SessionDescription `json:"answer,omitempty"`
	Candidates []model.ICECandidate      `json:"candidates"`
}

// SignalingService is the mailbox relay for SDP and ICE exchange. It stores
// payloads verbatim and applies the directional filter on poll: a
// participant never receives a message it authored itself.
type SignalingService struct {
	store  store.SessionStore
	broker *sse.Broker
	now    func() time.Time
}

func NewSignalingService(st store.SessionStore, broker *sse.Broker) *SignalingService {
	return &SignalingService{
		store:  st,
		broker: broker,
		now:    time.Now,
	}
}

// SubmitOffer stores the client's SDP offer, replacing any previous one
// (renegotiation replaces, not appends). Only the client role may offer.
func (s *SignalingService) SubmitOffer(ctx context.Context, code string, sdp json.RawMessage, from model.Role) error {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return err
	}
	if !from.Valid() {
		return apperrors.InvalidRole(string(from))
	}
	if from != model.RoleClient {
		return apperrors.ValidationError("offer must be submitted by the client role")
	}
	if len(sdp) == 0 {
		return apperrors.MissingRequired("offer")
	}

	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		sess.Signaling.Offer = &model.SessionDescription{
			SDP:       sdp,
			From:      from,
			Timestamp: s.now(),
		}
		return nil
	})
	if err != nil {
		return s.wrapStoreErr(code, err)
	}

	metrics.SignalsRelayed.WithLabelValues("offer").Inc()
	s.notify(ctx, code, "offer")
	log.Debug().Str("code", code).Msg("offer stored")
	return nil
}

// SubmitAnswer stores the host's SDP answer with the same overwrite
// semantics. Only the host role may answer.
func (s *SignalingService) SubmitAnswer(ctx context.Context, code string, sdp json.RawMessage, from model.Role) error {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return err
	}
	if !from.Valid() {
		return apperrors.InvalidRole(string(from))
	}
	if from != model.RoleHost {
		return apperrors.ValidationError("answer must be submitted by the host role")
	}
	if len(sdp) == 0 {
		return apperrors.MissingRequired("answer")
	}

	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		sess.Signaling.Answer = &model.SessionDescription{
			SDP:       sdp,
			From:      from,
			Timestamp: s.now(),
		}
		return nil
	})
	if err != nil {
		return s.wrapStoreErr(code, err)
	}

	metrics.SignalsRelayed.WithLabelValues("answer").Inc()
	s.notify(ctx, code, "answer")
	log.Debug().Str("code", code).Msg("answer stored")
	return nil
}

// AddCandidate appends one trickled ICE candidate tagged with its sender.
// Candidates may arrive before, between, or after the SDP exchange.
func (s *SignalingService) AddCandidate(ctx context.Context, code string, candidate json.RawMessage, from model.Role) error {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return err
	}
	if !from.Valid() {
		return apperrors.InvalidRole(string(from))
	}
	if len(candidate) == 0 {
		return apperrors.MissingRequired("candidate")
	}

	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		sess.Signaling.Candidates = append(sess.Signaling.Candidates, model.ICECandidate{
			Candidate: candidate,
			From:      from,
			Timestamp: s.now(),
		})
		return nil
	})
	if err != nil {
		return s.wrapStoreErr(code, err)
	}

	metrics.SignalsRelayed.WithLabelValues("ice-candidate").Inc()
	s.notify(ctx, code, "ice-candidate")
	return nil
}

// Poll returns the peer's pending signaling data. A host sees the offer only
// if the client authored it plus all client candidates; a client poll is the
// mirror image. Nothing a poller authored is ever echoed back to it.
func (s *SignalingService) Poll(ctx context.Context, code string, from model.Role) (*PollResult, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if !from.Valid() {
		return nil, apperrors.InvalidRole(string(from))
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, s.wrapStoreErr(code, err)
	}

	peer := from.Other()
	result := &PollResult{
		Candidates: session.Signaling.CandidatesFrom(peer),
	}

	switch from {
	case model.RoleHost:
		if offer := session.Signaling.Offer; offer != nil && offer.From == model.RoleClient {
			result.Offer = offer
		}
	case model.RoleClient:
		if answer := session.Signaling.Answer; answer != nil && answer.From == model.RoleHost {
			result.Answer = answer
		}
	}

	return result, nil
}

func (s *SignalingService) wrapStoreErr(code string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Str("code", code).Msg("signaling for unknown connection code")
		return apperrors.NotFound("Session")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Store(err)
}

// notify hints subscribers that new signaling data is waiting. Payloads
// still flow through the poll contract.
func (s *SignalingService) notify(ctx context.Context, code, signalType string) {
	if s.broker == nil {
		return
	}
	data, _ := json.Marshal(map[string]string{"signalType": signalType})
	if err := s.broker.Publish(ctx, code, sse.Event{Type: sse.EventSignal, Data: data}); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to publish signal event")
	}
}
