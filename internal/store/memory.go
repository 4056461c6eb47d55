package store

import (
	"context"
	"sync"
	"time"

	"github.com/allinone-studio/remote-support-server/internal/model"
)

// MemoryStore is the default single-process backend: one lock-protected map
// keyed by connection code. Expired sessions are invisible to reads and only
// occupy the map until the cleanup job reaps them.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Code]; ok {
		return ErrCodeExists
	}
	s.sessions[session.Code] = session.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[code]
	if !ok || session.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, fn UpdateFunc) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok || session.Expired(s.now()) {
		return nil, ErrNotFound
	}

	updated := session.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	s.sessions[code] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, code)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]model.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Expired(now) {
			continue
		}
		out = append(out, *session.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	count := 0
	for _, session := range s.sessions {
		if !session.Expired(now) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for code, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
