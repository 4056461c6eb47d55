package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/allinone-studio/remote-support-server/internal/database"
	"github.com/allinone-studio/remote-support-server/internal/model"
)

const pqUniqueViolation = "23505"

// PostgresStore persists sessions in a single table with jsonb columns for
// the nested permission, signaling, chat and transfer state. Updates take a
// row lock so read-modify-write cycles are serialized per code.
type PostgresStore struct {
	db *database.DB
}

var _ SessionStore = (*PostgresStore)(nil)

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// sessionRow is the flat database image of a model.Session.
type sessionRow struct {
	ID                string          `db:"id"`
	Code              string          `db:"code"`
	HostID            string          `db:"host_id"`
	ClientID          string          `db:"client_id"`
	Status            string          `db:"status"`
	AutoApprove       bool            `db:"auto_approve"`
	Permissions       json.RawMessage `db:"permissions"`
	Signaling         json.RawMessage `db:"signaling"`
	Chat              json.RawMessage `db:"chat"`
	Transfers         json.RawMessage `db:"transfers"`
	CreatedAt         time.Time       `db:"created_at"`
	ClientConnectedAt *time.Time      `db:"client_connected_at"`
	EndedAt           *time.Time      `db:"ended_at"`
	DurationSeconds   int64           `db:"duration_seconds"`
	ExpiresAt         time.Time       `db:"expires_at"`
}

func toRow(s *model.Session) (*sessionRow, error) {
	permissions, err := json.Marshal(s.Permissions)
	if err != nil {
		return nil, fmt.Errorf("marshal permissions: %w", err)
	}
	signaling, err := json.Marshal(s.Signaling)
	if err != nil {
		return nil, fmt.Errorf("marshal signaling: %w", err)
	}
	chat, err := json.Marshal(s.Chat)
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	transfers, err := json.Marshal(s.Transfers)
	if err != nil {
		return nil, fmt.Errorf("marshal transfers: %w", err)
	}

	return &sessionRow{
		ID:                s.ID,
		Code:              s.Code,
		HostID:            s.HostID,
		ClientID:          s.ClientID,
		Status:            string(s.Status),
		AutoApprove:       s.AutoApprove,
		Permissions:       permissions,
		Signaling:         signaling,
		Chat:              chat,
		Transfers:         transfers,
		CreatedAt:         s.CreatedAt,
		ClientConnectedAt: s.ClientConnectedAt,
		EndedAt:           s.EndedAt,
		DurationSeconds:   s.DurationSeconds,
		ExpiresAt:         s.ExpiresAt,
	}, nil
}

func (r *sessionRow) toModel() (*model.Session, error) {
	session := &model.Session{
		ID:                r.ID,
		Code:              r.Code,
		HostID:            r.HostID,
		ClientID:          r.ClientID,
		Status:            model.SessionStatus(r.Status),
		AutoApprove:       r.AutoApprove,
		CreatedAt:         r.CreatedAt,
		ClientConnectedAt: r.ClientConnectedAt,
		EndedAt:           r.EndedAt,
		DurationSeconds:   r.DurationSeconds,
		ExpiresAt:         r.ExpiresAt,
	}

	if err := json.Unmarshal(r.Permissions, &session.Permissions); err != nil {
		return nil, fmt.Errorf("unmarshal permissions: %w", err)
	}
	if err := json.Unmarshal(r.Signaling, &session.Signaling); err != nil {
		return nil, fmt.Errorf("unmarshal signaling: %w", err)
	}
	if err := json.Unmarshal(r.Chat, &session.Chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat: %w", err)
	}
	if err := json.Unmarshal(r.Transfers, &session.Transfers); err != nil {
		return nil, fmt.Errorf("unmarshal transfers: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) Create(ctx context.Context, session *model.Session) error {
	row, err := toRow(session)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO sessions (
			id, code, host_id, client_id, status, auto_approve,
			permissions, signaling, chat, transfers,
			created_at, client_connected_at, ended_at, duration_seconds, expires_at
		) VALUES (
			:id, :code, :host_id, :client_id, :status, :auto_approve,
			:permissions, :signaling, :chat, :transfers,
			:created_at, :client_connected_at, :ended_at, :duration_seconds, :expires_at
		)
	`, row)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return ErrCodeExists
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, code string) (*model.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM sessions WHERE code = $1 AND expires_at > NOW()
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

func (s *PostgresStore) Update(ctx context.Context, code string, fn UpdateFunc) (*model.Session, error) {
	var updated *model.Session

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var row sessionRow
		err := tx.GetContext(ctx, &row, `
			SELECT * FROM sessions WHERE code = $1 AND expires_at > NOW() FOR UPDATE
		`, code)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		session, err := row.toModel()
		if err != nil {
			return err
		}

		if err := fn(session); err != nil {
			return err
		}

		out, err := toRow(session)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE sessions SET
				client_id = :client_id,
				status = :status,
				permissions = :permissions,
				signaling = :signaling,
				chat = :chat,
				transfers = :transfers,
				client_connected_at = :client_connected_at,
				ended_at = :ended_at,
				duration_seconds = :duration_seconds,
				expires_at = :expires_at
			WHERE code = :code
		`, out)
		if err != nil {
			return err
		}

		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE code = $1`, code)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM sessions WHERE expires_at > NOW() ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0, len(rows))
	for i := range rows {
		session, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions WHERE expires_at > NOW()
	`)
	return count, err
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *PostgresStore) Close() error {
	return nil
}
