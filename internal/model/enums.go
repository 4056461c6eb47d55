package model

// SessionStatus tracks the pairing state machine. Transitions are monotonic:
// a session never returns to pending once connected, and ended is terminal.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConnected SessionStatus = "connected"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusEnded     SessionStatus = "ended"
)

// CanTransition reports whether moving from s to next is a legal transition.
// Re-applying the current status is allowed everywhere except ended.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s == SessionStatusEnded {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case SessionStatusPending:
		return next == SessionStatusConnected || next == SessionStatusEnded
	case SessionStatusConnected:
		return next == SessionStatusPaused || next == SessionStatusEnded
	case SessionStatusPaused:
		return next == SessionStatusConnected || next == SessionStatusEnded
	}
	return false
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusConnected, SessionStatusPaused, SessionStatusEnded:
		return true
	}
	return false
}

// Role identifies which side of the session authored a signaling message.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleClient
}

// Other returns the opposite participant role.
func (r Role) Other() Role {
	if r == RoleHost {
		return RoleClient
	}
	return RoleHost
}

type TransferStatus string

const (
	TransferStatusPending      TransferStatus = "pending"
	TransferStatusTransferring TransferStatus = "transferring"
	TransferStatusCompleted    TransferStatus = "completed"
	TransferStatusFailed       TransferStatus = "failed"
)

// Terminal reports whether the transfer can no longer change state.
func (s TransferStatus) Terminal() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed
}

type TransferDirection string

const (
	TransferDirectionUpload   TransferDirection = "upload"
	TransferDirectionDownload TransferDirection = "download"
)

func (d TransferDirection) Valid() bool {
	return d == TransferDirectionUpload || d == TransferDirectionDownload
}
