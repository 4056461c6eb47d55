package model

import (
	"time"
)

// PairingCodeLength is the exact length of every pairing code.
const PairingCodeLength = 6

// Session is the central record of the coordination layer. One host, at most
// one client, a pairing code unique among all live sessions.
type Session struct {
	ID                string         `db:"id" json:"id"`
	Code              string         `db:"code" json:"code"`
	HostID            string         `db:"host_id" json:"hostId"`
	ClientID          string         `db:"client_id" json:"clientId,omitempty"`
	Status            SessionStatus  `db:"status" json:"status"`
	AutoApprove       bool           `db:"auto_approve" json:"autoApprove"`
	Permissions       Permissions    `db:"permissions" json:"permissions"`
	Signaling         SignalingState `db:"signaling" json:"signaling"`
	Chat              []ChatMessage  `db:"chat" json:"chat"`
	Transfers         []FileTransfer `db:"transfers" json:"transfers,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	ClientConnectedAt *time.Time     `db:"client_connected_at" json:"clientConnectedAt,omitempty"`
	EndedAt           *time.Time     `db:"ended_at" json:"endedAt,omitempty"`
	DurationSeconds   int64          `db:"duration_seconds" json:"durationSeconds,omitempty"`
	ExpiresAt         time.Time      `db:"expires_at" json:"expiresAt"`
}

// End marks the session ended and records its duration. Idempotent.
func (s *Session) End(now time.Time) {
	if s.Status == SessionStatusEnded {
		return
	}
	s.Status = SessionStatusEnded
	s.EndedAt = &now
	s.DurationSeconds = int64(now.Sub(s.CreatedAt) / time.Second)
}

// Expired reports whether the session has passed its expiry window.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch slides the expiry window after a successful mutation.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.ExpiresAt = now.Add(ttl)
}

// Clone returns a deep copy so callers never share mutable slices with the
// store's own record.
func (s *Session) Clone() *Session {
	out := *s
	out.Signaling = s.Signaling.Clone()
	if s.Chat != nil {
		out.Chat = make([]ChatMessage, len(s.Chat))
		copy(out.Chat, s.Chat)
	}
	if s.Transfers != nil {
		out.Transfers = make([]FileTransfer, len(s.Transfers))
		copy(out.Transfers, s.Transfers)
	}
	return &out
}

// TransferByID finds a file transfer on this session, or nil.
func (s *Session) TransferByID(id string) *FileTransfer {
	for i := range s.Transfers {
		if s.Transfers[i].ID == id {
			return &s.Transfers[i]
		}
	}
	return nil
}

// AppendChat pushes a message onto the session's chat log. Chat is
// append-only; nothing ever removes or rewrites entries.
func (s *Session) AppendChat(msg ChatMessage) {
	s.Chat = append(s.Chat, msg)
}
