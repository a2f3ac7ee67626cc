package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/auth"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

func newWSServer(t *testing.T) (*Server, *httptest.Server, *auth.Manager) {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret-not-for-production"

	store := storage.NewMemoryStore()
	svc := review.NewService(store, review.NopSink{}, cfg.Review, nil)
	tokens, err := auth.NewManager(cfg.Auth)
	require.NoError(t, err)

	s := New(cfg, store, svc, tokens, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts, tokens
}

func wsURL(ts *httptest.Server, token string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/v1/ws?token=" + token
}

func TestWebsocketRequiresToken(t *testing.T) {
	_, ts, _ := newWSServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(strings.Replace(ts.URL, "http://", "ws://", 1)+"/api/v1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHubDeliversToConnectedSessions(t *testing.T) {
	s, ts, tokens := newWSServer(t)

	token, err := tokens.IssueToken("alice", "alice@example.com")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	// The session registers asynchronously after the upgrade.
	require.Eventually(t, func() bool {
		return s.hub.Connected("alice") == 1
	}, time.Second, 10*time.Millisecond)

	s.hub.Send("alice", []byte(`{"event":"impact.nudged","data":{}}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"impact.nudged","data":{}}`, string(payload))
}

func TestHubIgnoresUnknownUsers(t *testing.T) {
	s, _, _ := newWSServer(t)
	// No sessions registered; must not panic or block.
	s.hub.Send("nobody", []byte("x"))
	assert.Equal(t, 0, s.hub.Connected("nobody"))
}

func TestHubCloseAll(t *testing.T) {
	s, ts, tokens := newWSServer(t)

	token, err := tokens.IssueToken("alice", "alice@example.com")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, token), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.hub.Connected("alice") == 1
	}, time.Second, 10*time.Millisecond)

	s.hub.CloseAll()
	assert.Equal(t, 0, s.hub.Connected("alice"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
