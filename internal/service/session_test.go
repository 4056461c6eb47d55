package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/metrics"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

func newSessionService(t *testing.T) *SessionService {
	t.Helper()
	return NewSessionService(store.NewMemoryStore(), nil, time.Hour, false)
}

func TestSessionServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending session with a 6-digit code", func(t *testing.T) {
		svc := newSessionService(t)

		session, err := svc.Create(ctx, CreateSessionParams{HostID: "host-1"})
		require.NoError(t, err)

		assert.Len(t, session.Code, model.PairingCodeLength)
		for _, c := range session.Code {
			assert.True(t, c >= '0' && c <= '9', "code must be numeric, got %q", session.Code)
		}
		assert.Equal(t, model.SessionStatusPending, session.Status)
		assert.Equal(t, "host-1", session.HostID)
		assert.NotEmpty(t, session.ID)
		assert.Empty(t, session.ClientID)
	})

	t.Run("generates a host id when none is supplied", func(t *testing.T) {
		svc := newSessionService(t)

		session, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)
		assert.NotEmpty(t, session.HostID)
	})

	t.Run("omitted permission flags default to false", func(t *testing.T) {
		svc := newSessionService(t)

		session, err := svc.Create(ctx, CreateSessionParams{
			Permissions: map[string]bool{"screenShare": true},
		})
		require.NoError(t, err)

		assert.True(t, session.Permissions.ScreenShare)
		assert.False(t, session.Permissions.MouseControl)
		assert.False(t, session.Permissions.FileTransfer)
		assert.False(t, session.Permissions.Recording)
	})

	t.Run("autoApprove applies the trusted preset", func(t *testing.T) {
		svc := newSessionService(t)

		session, err := svc.Create(ctx, CreateSessionParams{AutoApprove: true})
		require.NoError(t, err)

		assert.True(t, session.AutoApprove)
		assert.True(t, session.Permissions.ScreenShare)
		assert.True(t, session.Permissions.MouseControl)
		assert.True(t, session.Permissions.KeyboardControl)
		assert.True(t, session.Permissions.Recording)
	})

	t.Run("active gauge excludes ended sessions", func(t *testing.T) {
		svc := newSessionService(t)

		_, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)
		second, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		ended := model.SessionStatusEnded
		_, err = svc.Update(ctx, second.Code, UpdateSessionParams{Status: &ended})
		require.NoError(t, err)

		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActiveSessions))
	})

	t.Run("codes are unique across concurrent sessions", func(t *testing.T) {
		svc := newSessionService(t)

		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			session, err := svc.Create(ctx, CreateSessionParams{})
			require.NoError(t, err)
			assert.False(t, seen[session.Code], "duplicate code %s", session.Code)
			seen[session.Code] = true
		}
	})
}

func TestGenerateCode(t *testing.T) {
	code, err := generateCode()
	require.NoError(t, err)
	require.Len(t, code, model.PairingCodeLength)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9', "code must be numeric, got %q", code)
	}
}

func TestSessionServiceJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("first join connects and records the client", func(t *testing.T) {
		svc := newSessionService(t)
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		joined, err := svc.Join(ctx, created.Code, "client-1")
		require.NoError(t, err)

		assert.Equal(t, model.SessionStatusConnected, joined.Status)
		assert.Equal(t, "client-1", joined.ClientID)
		require.NotNil(t, joined.ClientConnectedAt)
	})

	t.Run("join trims surrounding whitespace", func(t *testing.T) {
		svc := newSessionService(t)
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		joined, err := svc.Join(ctx, "  "+created.Code+" ", "client-1")
		require.NoError(t, err)
		assert.Equal(t, created.Code, joined.Code)
	})

	t.Run("rejects empty and malformed codes", func(t *testing.T) {
		svc := newSessionService(t)

		_, err := svc.Join(ctx, "", "client-1")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

		_, err = svc.Join(ctx, "12345", "client-1")
		assert.Equal(t, apperrors.ErrCodeInvalidCode, apperrors.GetCode(err))
	})

	t.Run("unknown code returns not found", func(t *testing.T) {
		svc := newSessionService(t)

		_, err := svc.Join(ctx, "000000", "client-1")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("rejoin keeps the original client and history", func(t *testing.T) {
		svc := newSessionService(t)
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		first, err := svc.Join(ctx, created.Code, "client-1")
		require.NoError(t, err)

		_, err = svc.Update(ctx, created.Code, UpdateSessionParams{
			ChatMessage: &ChatMessageParams{SenderID: "client-1", Text: "hello"},
		})
		require.NoError(t, err)

		again, err := svc.Join(ctx, created.Code, "client-2")
		require.NoError(t, err)

		assert.Equal(t, "client-1", again.ClientID)
		assert.Equal(t, first.ClientConnectedAt.Unix(), again.ClientConnectedAt.Unix())
		assert.Len(t, again.Chat, 1)
	})

	t.Run("joining an ended session is rejected", func(t *testing.T) {
		svc := newSessionService(t)
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		ended := model.SessionStatusEnded
		_, err = svc.Update(ctx, created.Code, UpdateSessionParams{Status: &ended})
		require.NoError(t, err)

		_, err = svc.Join(ctx, created.Code, "client-1")
		assert.Equal(t, apperrors.ErrCodeSessionEnded, apperrors.GetCode(err))
	})
}

func TestSessionServiceUpdate(t *testing.T) {
	ctx := context.Background()

	connect := func(t *testing.T, svc *SessionService) *model.Session {
		t.Helper()
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)
		joined, err := svc.Join(ctx, created.Code, "client-1")
		require.NoError(t, err)
		return joined
	}

	t.Run("permission update merges per key", func(t *testing.T) {
		svc := newSessionService(t)
		created, err := svc.Create(ctx, CreateSessionParams{AutoApprove: true})
		require.NoError(t, err)

		updated, err := svc.Update(ctx, created.Code, UpdateSessionParams{
			Permissions: map[string]bool{"mouseControl": false},
		})
		require.NoError(t, err)

		assert.False(t, updated.Permissions.MouseControl)
		assert.True(t, updated.Permissions.ScreenShare)
		assert.True(t, updated.Permissions.KeyboardControl)
	})

	t.Run("pause and resume", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		paused := model.SessionStatusPaused
		updated, err := svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &paused})
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusPaused, updated.Status)

		connected := model.SessionStatusConnected
		updated, err = svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &connected})
		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusConnected, updated.Status)
	})

	t.Run("ending records endedAt and duration", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		ended := model.SessionStatusEnded
		updated, err := svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &ended})
		require.NoError(t, err)

		assert.Equal(t, model.SessionStatusEnded, updated.Status)
		require.NotNil(t, updated.EndedAt)
		assert.GreaterOrEqual(t, updated.DurationSeconds, int64(0))
	})

	t.Run("ended is terminal", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		ended := model.SessionStatusEnded
		_, err := svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &ended})
		require.NoError(t, err)

		connected := model.SessionStatusConnected
		_, err = svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &connected})
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("backward transitions are rejected", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		pending := model.SessionStatusPending
		_, err := svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &pending})
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		bogus := model.SessionStatus("frozen")
		_, err := svc.Update(ctx, sess.Code, UpdateSessionParams{Status: &bogus})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("chat messages append in order", func(t *testing.T) {
		svc := newSessionService(t)
		sess := connect(t, svc)

		for _, text := range []string{"first", "second", "third"} {
			_, err := svc.Update(ctx, sess.Code, UpdateSessionParams{
				ChatMessage: &ChatMessageParams{SenderID: "host-1", Text: text},
			})
			require.NoError(t, err)
		}

		got, err := svc.Get(ctx, sess.Code)
		require.NoError(t, err)
		require.Len(t, got.Chat, 3)
		assert.Equal(t, "first", got.Chat[0].Text)
		assert.Equal(t, "third", got.Chat[2].Text)
		assert.NotEmpty(t, got.Chat[0].ID)
	})
}

func TestSessionServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("debug payload without exposure lists no codes", func(t *testing.T) {
		svc := newSessionService(t)
		_, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		_, err = svc.Get(ctx, "000000")
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeNotFound, appErr.Code)

		debug, ok := appErr.Details.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "000000", debug["requestedCode"])
		assert.Equal(t, 1, debug["totalSessions"])
		assert.NotContains(t, debug, "availableCodes")
	})

	t.Run("debug exposure includes live codes", func(t *testing.T) {
		svc := NewSessionService(store.NewMemoryStore(), nil, time.Hour, true)
		created, err := svc.Create(ctx, CreateSessionParams{})
		require.NoError(t, err)

		_, err = svc.Get(ctx, "000000")
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)

		debug, ok := appErr.Details.(map[string]any)
		require.True(t, ok)
		assert.Contains(t, debug["availableCodes"], created.Code)
	})
}
