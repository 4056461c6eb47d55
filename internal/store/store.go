// Package store holds the session registry. All server-side components go
// through SessionStore, so the in-memory map, Redis and Postgres backends
// are interchangeable without touching the lifecycle or relay code.
package store

import (
	"context"
	"errors"

	"github.com/allinone-studio/remote-support-server/internal/model"
)

var (
	// ErrNotFound is returned when no session exists for a code.
	ErrNotFound = errors.New("session not found")
	// ErrCodeExists is returned by Create when the generated code is
	// already claimed by a live session.
	ErrCodeExists = errors.New("connection code already in use")
)

// UpdateFunc mutates a session in place. It runs under the store's
// concurrency control, so a permission merge racing a chat append can never
// lose either write. Returning an error aborts the update unchanged.
type UpdateFunc func(*model.Session) error

type SessionStore interface {
	// Create stores a new session keyed by its code. The code claim is
	// atomic: two concurrent Creates with the same code cannot both succeed.
	Create(ctx context.Context, session *model.Session) error

	// Get returns a copy of the session for the code, or ErrNotFound.
	Get(ctx context.Context, code string) (*model.Session, error)

	// Update applies fn to the session atomically and returns the updated
	// copy, or ErrNotFound.
	Update(ctx context.Context, code string, fn UpdateFunc) (*model.Session, error)

	// Delete removes the session for the code. Missing codes are not an error.
	Delete(ctx context.Context, code string) error

	// List returns all currently tracked sessions. Diagnostics only.
	List(ctx context.Context) ([]model.Session, error)

	// Count returns the number of currently tracked sessions.
	Count(ctx context.Context) (int, error)

	// DeleteExpired reaps sessions past their expiry window and returns how
	// many were removed.
	DeleteExpired(ctx context.Context) (int64, error)

	Close() error
}
