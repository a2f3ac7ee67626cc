package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/auth"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

type testEnv struct {
	srv    *httptest.Server
	store  *storage.MemoryStore
	tokens map[string]string // user label -> bearer token
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret-not-for-production"
	cfg.Storage.Type = "memory"

	store := storage.NewMemoryStore()
	svc := review.NewService(store, review.NopSink{}, cfg.Review, nil)
	tokens, err := auth.NewManager(cfg.Auth)
	require.NoError(t, err)

	s := New(cfg, store, svc, tokens, nil)
	env := &testEnv{
		srv:    httptest.NewServer(s.Router()),
		store:  store,
		tokens: make(map[string]string),
	}
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userLabel string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userLabel != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[userLabel])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

// register creates a user via the API and stashes their token.
func (e *testEnv) register(t *testing.T, label string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":        label + "@example.com",
		"password":     "password-for-" + label,
		"display_name": label,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct {
		User  struct{ ID string }
		Token string
	}
	decode(t, resp, &out)
	e.tokens[label] = out.Token
	return out.User.ID
}

// setupReview builds a project with one change and one impact on bob.
func setupReview(t *testing.T, e *testEnv, mode string) (projectID, changeID, bobID string) {
	t.Helper()
	ownerID := e.register(t, "owner")
	aliceID := e.register(t, "alice")
	bobID = e.register(t, "bob")
	_ = ownerID
	_ = aliceID

	var project struct{ ID string }
	resp := e.do(t, http.MethodPost, "/api/v1/projects", "owner", map[string]interface{}{
		"name": "demo", "strictness_mode": mode,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &project)

	var component struct{ ID string }
	resp = e.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/components", "owner", map[string]interface{}{
		"name": "billing",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &component)

	var change struct{ ID string }
	resp = e.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/changes", "alice", map[string]interface{}{
		"title": "tighten invoice rounding",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &change)

	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+change.ID+"/impacts", "alice", map[string]interface{}{
		"impacts": []map[string]string{{
			"component_id":     component.ID,
			"contributor_id":   bobID,
			"detection_method": "parser",
			"confidence":       "high",
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	return project.ID, change.ID, bobID
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/api/v1/me", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	e.tokens["bogus"] = "not-a-token"
	resp = e.do(t, http.MethodGet, "/api/v1/me", "bogus", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "password-for-alice",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestFullReviewFlowOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	_, changeID, _ := setupReview(t, e, "full")

	// Gate: CI still running.
	var gate struct {
		CanMerge bool   `json:"can_merge"`
		Reason   string `json:"reason"`
	}
	resp := e.do(t, http.MethodGet, "/api/v1/changes/"+changeID+"/gate", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &gate)
	assert.False(t, gate.CanMerge)
	assert.Equal(t, "Waiting on CI pipeline", gate.Reason)

	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/ci", "owner", map[string]string{"status": "passed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Approving with bob outstanding is a policy conflict.
	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/approve", "owner", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Bob reads the impact set; response carries his role.
	var impactSet struct {
		Role    string `json:"role"`
		Impacts []struct {
			ComponentID string `json:"component_id"`
			AckStatus   string `json:"ack_status"`
		} `json:"impacts"`
	}
	resp = e.do(t, http.MethodGet, "/api/v1/changes/"+changeID+"/impact", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &impactSet)
	assert.Equal(t, "contributor", impactSet.Role)
	require.Len(t, impactSet.Impacts, 1)
	componentID := impactSet.Impacts[0].ComponentID

	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/acknowledge", "bob", map[string]string{
		"component_id": componentID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/api/v1/changes/"+changeID+"/gate", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &gate)
	assert.True(t, gate.CanMerge)
	assert.Equal(t, "All gates met — ready to merge", gate.Reason)

	var change struct{ Status string }
	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/approve", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &change)
	assert.Equal(t, "approved", change.Status)

	// Double-approve is a transition error now.
	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/approve", "owner", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestErrorCodeMapping(t *testing.T) {
	e := newTestEnv(t)
	_, changeID, bobID := setupReview(t, e, "full")

	// Unknown change: 404.
	resp := e.do(t, http.MethodGet, "/api/v1/changes/ghost/impact", "owner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Parser impact dismissal: 422.
	var impactSet struct {
		Impacts []struct {
			ComponentID string `json:"component_id"`
		} `json:"impacts"`
	}
	resp = e.do(t, http.MethodGet, "/api/v1/changes/"+changeID+"/impact", "bob", nil)
	decode(t, resp, &impactSet)
	componentID := impactSet.Impacts[0].ComponentID

	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/dismiss", "bob", map[string]string{
		"component_id": componentID,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Missing body field: 400.
	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/acknowledge", "bob", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Nudge authz: owner is not the author, 409 (policy).
	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+changeID+"/nudge", "owner", map[string]string{
		"contributor_id": bobID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdatePolicyEndpoint(t *testing.T) {
	e := newTestEnv(t)
	projectID, _, _ := setupReview(t, e, "visibility")

	// Non-owner rejected.
	resp := e.do(t, http.MethodPatch, "/api/v1/projects/"+projectID+"/policy", "alice", map[string]interface{}{
		"strictness_mode": "full",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var project struct {
		StrictnessMode string `json:"strictness_mode"`
	}
	resp = e.do(t, http.MethodPatch, "/api/v1/projects/"+projectID+"/policy", "owner", map[string]interface{}{
		"strictness_mode":             "full",
		"auto_confirm_window_seconds": 3600,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &project)
	assert.Equal(t, "full", project.StrictnessMode)
}

func TestNotificationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	_, _, _ = setupReview(t, e, "soft")

	// Detection delivery notified bob.
	var notifications []struct {
		ID     string `json:"id"`
		IsRead bool   `json:"is_read"`
	}
	resp := e.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &notifications)
	require.NotEmpty(t, notifications)

	resp = e.do(t, http.MethodPost, "/api/v1/notifications/read", "bob", map[string]interface{}{"all": true})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = e.do(t, http.MethodGet, "/api/v1/notifications", "bob", nil)
	decode(t, resp, &notifications)
	for _, n := range notifications {
		assert.True(t, n.IsRead)
	}

	// Empty mark-read request is a validation error.
	resp = e.do(t, http.MethodPost, "/api/v1/notifications/read", "bob", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSoftModeAutoConfirmOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	ownerID := e.register(t, "owner")
	aliceID := e.register(t, "alice")
	bobID := e.register(t, "bob")
	_ = ownerID
	_ = aliceID

	// One-second acknowledgement window so the deadline expires in-test.
	var project struct{ ID string }
	resp := e.do(t, http.MethodPost, "/api/v1/projects", "owner", map[string]interface{}{
		"name": "demo", "strictness_mode": "soft", "auto_confirm_window_seconds": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &project)

	var component struct{ ID string }
	resp = e.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/components", "owner", map[string]interface{}{"name": "billing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &component)

	var change struct{ ID string }
	resp = e.do(t, http.MethodPost, "/api/v1/projects/"+project.ID+"/changes", "alice", map[string]interface{}{"title": "rounding fix"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &change)

	resp = e.do(t, http.MethodPost, "/api/v1/changes/"+change.ID+"/impacts", "alice", map[string]interface{}{
		"impacts": []map[string]string{{
			"component_id": component.ID, "contributor_id": bobID,
			"detection_method": "parser", "confidence": "high",
		}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	time.Sleep(1200 * time.Millisecond)

	// No background sweeper is running; the read alone settles the state.
	var impactSet struct {
		Impacts []struct {
			AckStatus string `json:"ack_status"`
		} `json:"impacts"`
	}
	resp = e.do(t, http.MethodGet, "/api/v1/changes/"+change.ID+"/impact", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &impactSet)
	require.Len(t, impactSet.Impacts, 1)
	assert.Equal(t, "auto_confirmed", impactSet.Impacts[0].AckStatus)
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
