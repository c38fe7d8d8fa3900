package api

import (
	"encoding/hex"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/auth"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

// testServer wraps the API server for endpoint testing.
type testServer struct {
	*Server
	api humatest.TestAPI
	st  *store.Store
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "pulsecheck-api-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	st, err := store.New(tmpDir+"/db", nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authKey, err := auth.LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(
		hex.EncodeToString(authKey),
		15*time.Minute,
		30*24*time.Hour,
	)
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)

	mcService := service.NewMicroclimateService(st, store.NewNoopEmitter(), logger, service.MicroclimateOptions{})
	services := &Services{
		Auth:         service.NewAuthService(st, tokenService, nil, logger),
		Microclimate: mcService,
		Invitation:   service.NewInvitationService(st, store.NewNoopEmitter(), mcService, nil, logger),
	}

	s := NewServer(st, services, logger, opts)
	t.Cleanup(s.Close)

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.api),
		st:     st,
	}
}

// setupAdmin runs initial setup and returns the root admin's token.
func (ts *testServer) setupAdmin(t *testing.T, companyID string) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":      "admin@" + companyID + ".test",
		"password":   "TestPassword123!",
		"first_name": "Root",
		"last_name":  "Admin",
		"company_id": companyID,
	})
	require.Equal(t, http.StatusOK, resp.Code, "setup failed: %s", resp.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken
}

// registerUser creates a user via the admin-only register endpoint and logs
// them in, returning their token and user ID.
func (ts *testServer) registerUser(t *testing.T, adminToken, email, companyID string, role domain.Role) (token, userID string) {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register",
		"Authorization: Bearer "+adminToken,
		map[string]any{
			"email":      email,
			"password":   "TestPassword123!",
			"first_name": "Test",
			"last_name":  "User",
			"company_id": companyID,
			"role":       string(role),
		})
	require.Equal(t, http.StatusOK, resp.Code, "register failed: %s", resp.Body.String())

	login := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "TestPassword123!",
	})
	require.Equal(t, http.StatusOK, login.Code, "login failed: %s", login.Body.String())

	var envelope testEnvelope[AuthResponse]
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &envelope))
	return envelope.Data.AccessToken, envelope.Data.User.ID
}

// createSession creates an already-running session via the API.
func (ts *testServer) createSession(t *testing.T, managerToken string, participantIDs []string, showLiveResults bool) domain.Microclimate {
	t.Helper()

	resp := ts.api.Post("/api/v1/microclimates",
		"Authorization: Bearer "+managerToken,
		map[string]any{
			"title": "Sprint pulse",
			"questions": []map[string]any{
				{"text": "How was the sprint?", "type": "likert", "options": []string{"Rough", "Fine", "Great"}},
				{"text": "Anything to add?", "type": "open_text"},
			},
			"start_time":        time.Now().Add(-time.Minute).Format(time.RFC3339),
			"duration_minutes":  30,
			"participant_ids":   participantIDs,
			"show_live_results": showLiveResults,
			"sentiment_enabled": true,
		})
	require.Equal(t, http.StatusOK, resp.Code, "create failed: %s", resp.Body.String())

	var envelope testEnvelope[domain.Microclimate]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

// submissionFor fills in the real question IDs from the created session.
func submissionFor(mc domain.Microclimate) map[string]any {
	idx := 2
	return map[string]any{
		"answers": []map[string]any{
			{"question_id": mc.Questions[0].ID, "option_index": idx},
			{"question_id": mc.Questions[1].ID, "free_text": "great collaboration this sprint"},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[HealthResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "healthy", envelope.Data.Components["database"].Status)
	assert.Equal(t, "degraded", envelope.Data.Components["search"].Status)
}

func TestSetup_OnlyOnce(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.setupAdmin(t, "acme")

	resp := ts.api.Post("/api/v1/auth/setup", map[string]any{
		"email":      "second@acme.test",
		"password":   "TestPassword123!",
		"first_name": "Second",
		"last_name":  "Admin",
		"company_id": "acme",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestCurrentUser(t *testing.T) {
	ts := setupTestServer(t, Options{})
	token := ts.setupAdmin(t, "acme")

	resp := ts.api.Get("/api/v1/auth/me", "Authorization: Bearer "+token)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[UserResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "admin@acme.test", envelope.Data.Email)
	assert.True(t, envelope.Data.IsRoot)
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/auth/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRegister_RequiresAdmin(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	employeeToken, _ := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	resp := ts.api.Post("/api/v1/auth/register",
		"Authorization: Bearer "+employeeToken,
		map[string]any{
			"email":      "other@acme.test",
			"password":   "TestPassword123!",
			"first_name": "Other",
			"last_name":  "User",
			"company_id": "acme",
			"role":       "employee",
		})
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCreateMicroclimate_RequiresManager(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	employeeToken, _ := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	body := map[string]any{
		"title":            "Pulse",
		"questions":        []map[string]any{{"text": "Mood?", "type": "open_text"}},
		"start_time":       time.Now().Format(time.RFC3339),
		"duration_minutes": 30,
	}

	resp := ts.api.Post("/api/v1/microclimates", body)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/microclimates", "Authorization: Bearer "+employeeToken, body)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestSessionLifecycle_EndToEnd(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)
	employeeToken, employeeID := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	mc := ts.createSession(t, managerToken, []string{employeeID}, false)
	require.Len(t, mc.Questions, 2)

	// The session started a minute ago, so a read resolves it to active.
	resp := ts.api.Get("/api/v1/microclimates/"+mc.ID, "Authorization: Bearer "+employeeToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var getEnv testEnvelope[domain.Microclimate]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &getEnv))
	assert.Equal(t, domain.StatusActive, getEnv.Data.Status)
	assert.Nil(t, getEnv.Data.LiveResults, "live results hidden from employees mid-session")

	// Employee submits once.
	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/responses",
		"Authorization: Bearer "+employeeToken, submissionFor(mc))
	require.Equal(t, http.StatusOK, resp.Code, "submit failed: %s", resp.Body.String())

	var submitEnv testEnvelope[SubmitResponseResult]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &submitEnv))
	assert.Equal(t, 1, submitEnv.Data.ResponseCount)

	// Duplicate submission is rejected.
	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/responses",
		"Authorization: Bearer "+employeeToken, submissionFor(mc))
	assert.Equal(t, http.StatusConflict, resp.Code)

	// Live results are manager-only while the session runs.
	resp = ts.api.Get("/api/v1/microclimates/"+mc.ID+"/results", "Authorization: Bearer "+employeeToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Get("/api/v1/microclimates/"+mc.ID+"/results", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var resultsEnv testEnvelope[ResultsResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &resultsEnv))
	assert.Equal(t, 1, resultsEnv.Data.ResponseCount)
	require.NotNil(t, resultsEnv.Data.Results)

	// Invitation moved to participated with the submission.
	resp = ts.api.Get("/api/v1/microclimates/"+mc.ID+"/invitations", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var invEnv testEnvelope[InvitationListResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &invEnv))
	require.Equal(t, 1, invEnv.Data.Total)
	assert.Equal(t, domain.InvitationParticipated, invEnv.Data.Invitations[0].Status)

	// Pause, verify submissions stop, then cancel.
	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/pause", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/cancel", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var cancelEnv testEnvelope[domain.Microclimate]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cancelEnv))
	assert.Equal(t, domain.StatusCancelled, cancelEnv.Data.Status)
}

func TestPauseMicroclimate_RequiresManager(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)
	employeeToken, _ := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	mc := ts.createSession(t, managerToken, nil, false)

	resp := ts.api.Post("/api/v1/microclimates/"+mc.ID+"/pause", "Authorization: Bearer "+employeeToken)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestCrossCompany_ReadsAsNotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)
	outsiderToken, _ := ts.registerUser(t, adminToken, "mgr@globex.test", "globex", domain.RoleManager)

	mc := ts.createSession(t, managerToken, nil, false)

	resp := ts.api.Get("/api/v1/microclimates/"+mc.ID, "Authorization: Bearer "+outsiderToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/cancel", "Authorization: Bearer "+outsiderToken)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeliveryEvents_ForwardOnly(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)
	_, employeeID := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	mc := ts.createSession(t, managerToken, []string{employeeID}, false)
	eventsPath := "/api/v1/microclimates/" + mc.ID + "/invitations/" + employeeID + "/events"

	resp := ts.api.Post(eventsPath, "Authorization: Bearer "+managerToken,
		map[string]any{"event": "started"})
	require.Equal(t, http.StatusOK, resp.Code)

	var env testEnvelope[DeliveryEventResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.True(t, env.Data.Applied)
	assert.Equal(t, domain.InvitationStarted, env.Data.Invitation.Status)

	// A late "opened" callback after "started" is acknowledged but dropped.
	resp = ts.api.Post(eventsPath, "Authorization: Bearer "+managerToken,
		map[string]any{"event": "opened"})
	require.Equal(t, http.StatusOK, resp.Code)

	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.False(t, env.Data.Applied)
	assert.Equal(t, domain.InvitationStarted, env.Data.Invitation.Status)

	// Unknown events are rejected outright.
	resp = ts.api.Post(eventsPath, "Authorization: Bearer "+managerToken,
		map[string]any{"event": "vanished"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitResponse_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{SubmitRPS: 0.01, SubmitBurst: 1})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)
	employeeToken, employeeID := ts.registerUser(t, adminToken, "emp@acme.test", "acme", domain.RoleEmployee)

	mc := ts.createSession(t, managerToken, []string{employeeID}, false)

	resp := ts.api.Post("/api/v1/microclimates/"+mc.ID+"/responses",
		"Authorization: Bearer "+employeeToken, submissionFor(mc))
	require.Equal(t, http.StatusOK, resp.Code)

	// The burst is spent; the duplicate check never gets a chance to run.
	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/responses",
		"Authorization: Bearer "+employeeToken, submissionFor(mc))
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestResults_ReportTimeRemaining(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)

	mc := ts.createSession(t, managerToken, nil, false)

	resp := ts.api.Get("/api/v1/microclimates/"+mc.ID+"/results", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope testEnvelope[ResultsResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	// The session started a minute into a 30-minute window.
	assert.Greater(t, envelope.Data.TimeRemainingSeconds, int64(0))
	assert.LessOrEqual(t, envelope.Data.TimeRemainingSeconds, int64(29*60))

	// Once the session ends, the countdown drops out of the payload.
	resp = ts.api.Post("/api/v1/microclimates/"+mc.ID+"/cancel", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/microclimates/"+mc.ID+"/results", "Authorization: Bearer "+managerToken)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Zero(t, envelope.Data.TimeRemainingSeconds)
}

func TestValidationErrors_SurfaceDetails(t *testing.T) {
	ts := setupTestServer(t, Options{})
	adminToken := ts.setupAdmin(t, "acme")
	managerToken, _ := ts.registerUser(t, adminToken, "mgr@acme.test", "acme", domain.RoleManager)

	resp := ts.api.Post("/api/v1/microclimates",
		"Authorization: Bearer "+managerToken,
		map[string]any{
			"title":            "No questions",
			"questions":        []map[string]any{},
			"start_time":       time.Now().Format(time.RFC3339),
			"duration_minutes": 30,
		})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var envelope testEnvelope[struct{}]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
}
