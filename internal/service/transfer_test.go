package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

func newTransferFixture(t *testing.T) (*TransferService, string) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	sessions := NewSessionService(st, nil, time.Hour, false)
	created, err := sessions.Create(ctx, CreateSessionParams{})
	require.NoError(t, err)

	return NewTransferService(st), created.Code
}

func TestStartTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a transferring entry", func(t *testing.T) {
		svc, code := newTransferFixture(t)

		transfer, err := svc.StartTransfer(ctx, code, "report.pdf", 1024, model.TransferDirectionUpload)
		require.NoError(t, err)

		assert.NotEmpty(t, transfer.ID)
		assert.Equal(t, "report.pdf", transfer.FileName)
		assert.Equal(t, int64(1024), transfer.FileSize)
		assert.Equal(t, model.TransferStatusTransferring, transfer.Status)
		assert.Equal(t, 0, transfer.Progress)
		assert.Nil(t, transfer.CompletedAt)
	})

	t.Run("validates inputs", func(t *testing.T) {
		svc, code := newTransferFixture(t)

		_, err := svc.StartTransfer(ctx, code, "", 10, model.TransferDirectionUpload)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

		_, err = svc.StartTransfer(ctx, code, "a.txt", -1, model.TransferDirectionUpload)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

		_, err = svc.StartTransfer(ctx, code, "a.txt", 10, model.TransferDirection("sideways"))
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("a session can carry several transfers", func(t *testing.T) {
		svc, code := newTransferFixture(t)

		_, err := svc.StartTransfer(ctx, code, "a.txt", 1, model.TransferDirectionUpload)
		require.NoError(t, err)
		_, err = svc.StartTransfer(ctx, code, "b.txt", 2, model.TransferDirectionDownload)
		require.NoError(t, err)

		transfers, err := svc.ListTransfers(ctx, code)
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, "a.txt", transfers[0].FileName)
		assert.Equal(t, "b.txt", transfers[1].FileName)
	})
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()

	start := func(t *testing.T) (*TransferService, string, string) {
		t.Helper()
		svc, code := newTransferFixture(t)
		transfer, err := svc.StartTransfer(ctx, code, "a.txt", 100, model.TransferDirectionUpload)
		require.NoError(t, err)
		return svc, code, transfer.ID
	}

	t.Run("progress advances monotonically", func(t *testing.T) {
		svc, code, id := start(t)

		updated, err := svc.UpdateProgress(ctx, code, id, 40)
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Progress)

		updated, err = svc.UpdateProgress(ctx, code, id, 25)
		require.NoError(t, err)
		assert.Equal(t, 40, updated.Progress)
	})

	t.Run("reaching 100 completes the transfer", func(t *testing.T) {
		svc, code, id := start(t)

		updated, err := svc.UpdateProgress(ctx, code, id, 100)
		require.NoError(t, err)

		assert.Equal(t, model.TransferStatusCompleted, updated.Status)
		assert.Equal(t, 100, updated.Progress)
		require.NotNil(t, updated.CompletedAt)
	})

	t.Run("a completed transfer stays completed", func(t *testing.T) {
		svc, code, id := start(t)

		_, err := svc.UpdateProgress(ctx, code, id, 100)
		require.NoError(t, err)

		updated, err := svc.UpdateProgress(ctx, code, id, 50)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusCompleted, updated.Status)
		assert.Equal(t, 100, updated.Progress)
	})

	t.Run("out-of-range progress is rejected", func(t *testing.T) {
		svc, code, id := start(t)

		_, err := svc.UpdateProgress(ctx, code, id, -1)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

		_, err = svc.UpdateProgress(ctx, code, id, 101)
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("unknown transfer returns not found", func(t *testing.T) {
		svc, code, _ := start(t)

		_, err := svc.UpdateProgress(ctx, code, "no-such-transfer", 50)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks an in-flight transfer failed", func(t *testing.T) {
		svc, code := newTransferFixture(t)
		transfer, err := svc.StartTransfer(ctx, code, "a.txt", 100, model.TransferDirectionUpload)
		require.NoError(t, err)

		failed, err := svc.MarkFailed(ctx, code, transfer.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusFailed, failed.Status)
		require.NotNil(t, failed.CompletedAt)

		updated, err := svc.UpdateProgress(ctx, code, transfer.ID, 90)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusFailed, updated.Status)
	})

	t.Run("a completed transfer cannot fail afterwards", func(t *testing.T) {
		svc, code := newTransferFixture(t)
		transfer, err := svc.StartTransfer(ctx, code, "a.txt", 100, model.TransferDirectionUpload)
		require.NoError(t, err)

		_, err = svc.UpdateProgress(ctx, code, transfer.ID, 100)
		require.NoError(t, err)

		failed, err := svc.MarkFailed(ctx, code, transfer.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TransferStatusCompleted, failed.Status)
	})
}
