package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/allinone-studio/remote-support-server/internal/model"
)

const (
	redisSessionKeyPrefix = "remote:session:"
	redisUpdateMaxRetries = 5
)

// RedisStore keeps each session as one JSON value with a per-key TTL, for
// deployments where the coordination layer runs on more than one instance.
// Expiry is enforced by Redis itself; DeleteExpired is a no-op.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ SessionStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle; Close here is a no-op.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func sessionKey(code string) string {
	return redisSessionKeyPrefix + code
}

func (s *RedisStore) ttl(session *model.Session) time.Duration {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(session.Code), data, s.ttl(session)).Result()
	if err != nil {
		return fmt.Errorf("setnx session: %w", err)
	}
	if !ok {
		return ErrCodeExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, code string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// Update runs an optimistic WATCH/MULTI loop so read-modify-write cycles on
// the same code never lose a concurrent write.
func (s *RedisStore) Update(ctx context.Context, code string, fn UpdateFunc) (*model.Session, error) {
	key := sessionKey(code)
	var updated *model.Session

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		if err := fn(&session); err != nil {
			return err
		}

		out, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl(&session))
			return nil
		})
		if err != nil {
			return err
		}

		updated = &session
		return nil
	}

	for i := 0; i < redisUpdateMaxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update session %s: too many concurrent writes", code)
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx, sessionKey(code)).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session

	iter := s.client.Scan(ctx, 0, redisSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}

		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, redisSessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan sessions: %w", err)
	}
	return count, nil
}

// DeleteExpired is a no-op: Redis evicts sessions via per-key TTL.
func (s *RedisStore) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return nil
}
