package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-chi/chi/v5"
)

func createConnectedSession(t *testing.T, r chi.Router) string {
	t.Helper()

	created := decodeSession(t, doJSON(t, r, http.MethodPost, "/api/remote/session", map[string]any{
		"action": "create",
	}))
	rec := doJSON(t, r, http.MethodPost, "/api/remote/session", map[string]any{
		"action": "join",
		"code":   created.Code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return created.Code
}

func pollSignal(t *testing.T, r chi.Router, code, from string) map[string]json.RawMessage {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/remote/signal?code="+code+"&from="+from, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSignalEndpoint(t *testing.T) {
	offer := map[string]string{"type": "offer", "sdp": "v=0"}
	answer := map[string]string{"type": "answer", "sdp": "v=0"}

	t.Run("offer round trip through the mailbox", func(t *testing.T) {
		r, _ := newTestRouter(t, false)
		code := createConnectedSession(t, r)

		rec := doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
			"action": "offer",
			"code":   code,
			"from":   "client",
			"offer":  offer,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		hostView := pollSignal(t, r, code, "host")
		var stored struct {
			SDP  json.RawMessage `json:"sdp"`
			From string          `json:"from"`
		}
		require.NoError(t, json.Unmarshal(hostView["offer"], &stored))
		assert.Equal(t, "client", stored.From)

		clientView := pollSignal(t, r, code, "client")
		assert.Equal(t, "null", string(clientView["offer"]))
	})

	t.Run("role restrictions are enforced", func(t *testing.T) {
		r, _ := newTestRouter(t, false)
		code := createConnectedSession(t, r)

		rec := doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
			"action": "offer",
			"code":   code,
			"from":   "host",
			"offer":  offer,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
			"action": "answer",
			"code":   code,
			"from":   "client",
			"answer": answer,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("candidates filter by sender on poll", func(t *testing.T) {
		r, _ := newTestRouter(t, false)
		code := createConnectedSession(t, r)

		for _, from := range []string{"client", "host", "client"} {
			rec := doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
				"action":    "ice-candidate",
				"code":      code,
				"from":      from,
				"candidate": map[string]string{"candidate": "candidate:" + from},
			})
			require.Equal(t, http.StatusOK, rec.Code)
		}

		hostView := pollSignal(t, r, code, "host")
		var hostCandidates []json.RawMessage
		require.NoError(t, json.Unmarshal(hostView["candidates"], &hostCandidates))
		assert.Len(t, hostCandidates, 2)

		clientView := pollSignal(t, r, code, "client")
		var clientCandidates []json.RawMessage
		require.NoError(t, json.Unmarshal(clientView["candidates"], &clientCandidates))
		assert.Len(t, clientCandidates, 1)
	})

	t.Run("unknown action returns 400", func(t *testing.T) {
		r, _ := newTestRouter(t, false)
		code := createConnectedSession(t, r)

		rec := doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
			"action": "renegotiate",
			"code":   code,
			"from":   "client",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("poll with an invalid role returns 400", func(t *testing.T) {
		r, _ := newTestRouter(t, false)
		code := createConnectedSession(t, r)

		req := httptest.NewRequest(http.MethodGet, "/api/remote/signal?code="+code+"&from=observer", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("signaling against an unknown code returns 404 without debug hints", func(t *testing.T) {
		r, _ := newTestRouter(t, false)

		rec := doJSON(t, r, http.MethodPost, "/api/remote/signal", map[string]any{
			"action": "offer",
			"code":   "000000",
			"from":   "client",
			"offer":  offer,
		})
		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotContains(t, resp, "debug")
	})
}
