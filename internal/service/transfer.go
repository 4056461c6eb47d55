package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

// TransferService tracks per-session file transfer progress. Transfers are
// addressed by connection code plus transfer ID and live on the session
// record, so they share the store's atomicity guarantees.
type TransferService struct {
	store store.SessionStore
	now   func() time.Time
}

func NewTransferService(st store.SessionStore) *TransferService {
	return &TransferService{
		store: st,
		now:   time.Now,
	}
}

// StartTransfer registers a new transfer in the transferring state.
func (s *TransferService) StartTransfer(ctx context.Context, code, fileName string, fileSize int64, direction model.TransferDirection) (*model.FileTransfer, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if fileName == "" {
		return nil, apperrors.MissingRequired("fileName")
	}
	if fileSize < 0 {
		return nil, apperrors.InvalidInput("fileSize", "must not be negative")
	}
	if !direction.Valid() {
		return nil, apperrors.InvalidInput("direction", string(direction))
	}

	transfer := model.FileTransfer{
		ID:        uuid.NewString(),
		FileName:  fileName,
		FileSize:  fileSize,
		Direction: direction,
		Status:    model.TransferStatusTransferring,
		Progress:  0,
		StartedAt: s.now(),
	}

	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		sess.Transfers = append(sess.Transfers, transfer)
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(code, err)
	}

	log.Info().
		Str("code", code).
		Str("transferId", transfer.ID).
		Str("fileName", fileName).
		Int64("fileSize", fileSize).
		Msg("file transfer started")

	return &transfer, nil
}

// UpdateProgress moves a transfer forward. Progress never regresses: lower
// values are ignored, and a terminal transfer stays terminal. Reaching 100
// completes the transfer and stamps completedAt.
func (s *TransferService) UpdateProgress(ctx context.Context, code, transferID string, progress int) (*model.FileTransfer, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	if progress < 0 || progress > 100 {
		return nil, apperrors.InvalidInput("progress", "must be between 0 and 100")
	}

	var updated model.FileTransfer
	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		transfer := sess.TransferByID(transferID)
		if transfer == nil {
			return apperrors.NotFound("Transfer")
		}

		if !transfer.Status.Terminal() {
			if progress > transfer.Progress {
				transfer.Progress = progress
			}
			if transfer.Progress >= 100 {
				transfer.Status = model.TransferStatusCompleted
				now := s.now()
				transfer.CompletedAt = &now
			}
		}

		updated = *transfer
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(code, err)
	}

	if updated.Status == model.TransferStatusCompleted {
		log.Info().
			Str("code", code).
			Str("transferId", transferID).
			Msg("file transfer completed")
	}

	return &updated, nil
}

// MarkFailed sets the independent failed terminal state. A transfer that
// already completed stays completed.
func (s *TransferService) MarkFailed(ctx context.Context, code, transferID string) (*model.FileTransfer, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	var updated model.FileTransfer
	_, err := s.store.Update(ctx, code, func(sess *model.Session) error {
		transfer := sess.TransferByID(transferID)
		if transfer == nil {
			return apperrors.NotFound("Transfer")
		}

		if transfer.Status != model.TransferStatusCompleted {
			transfer.Status = model.TransferStatusFailed
			now := s.now()
			transfer.CompletedAt = &now
		}

		updated = *transfer
		return nil
	})
	if err != nil {
		return nil, s.wrapStoreErr(code, err)
	}

	log.Warn().
		Str("code", code).
		Str("transferId", transferID).
		Msg("file transfer failed")

	return &updated, nil
}

// ListTransfers returns the session's transfers in start order.
func (s *TransferService) ListTransfers(ctx context.Context, code string) ([]model.FileTransfer, error) {
	code = NormalizeCode(code)
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	session, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, s.wrapStoreErr(code, err)
	}
	return session.Transfers, nil
}

func (s *TransferService) wrapStoreErr(code string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Session")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Store(err)
}
