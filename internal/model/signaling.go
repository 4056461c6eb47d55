package model

import (
	"encoding/json"
	"time"
)

// SessionDescription holds an SDP payload with its sender tag. The relay
// never inspects the SDP; it is stored and returned verbatim.
type SessionDescription struct {
	SDP       json.RawMessage `json:"sdp"`
	From      Role            `json:"from"`
	Timestamp time.Time       `json:"timestamp"`
}

// ICECandidate is one trickled connectivity candidate. The candidate payload
// (candidate string, sdpMid, sdpMLineIndex) is relayed opaquely.
type ICECandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	From      Role            `json:"from"`
	Timestamp time.Time       `json:"timestamp"`
}

// SignalingState is the per-session mailbox: at most one live offer, at most
// one live answer, and an append-only candidate list.
type SignalingState struct {
	Offer      *SessionDescription `json:"offer,omitempty"`
	Answer     *SessionDescription `json:"answer,omitempty"`
	Candidates []ICECandidate      `json:"candidates,omitempty"`
}

func (s SignalingState) Clone() SignalingState {
	out := s
	if s.Offer != nil {
		offer := *s.Offer
		out.Offer = &offer
	}
	if s.Answer != nil {
		answer := *s.Answer
		out.Answer = &answer
	}
	if s.Candidates != nil {
		out.Candidates = make([]ICECandidate, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	return out
}

// CandidatesFrom returns the candidates authored by role, in insertion order.
func (s SignalingState) CandidatesFrom(role Role) []ICECandidate {
	out := make([]ICECandidate, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		if c.From == role {
			out = append(out, c)
		}
	}
	return out
}
