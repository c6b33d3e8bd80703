package settings

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclub/notification-api/internal/middleware"
	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/repository/memory"
	"github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/auth"
	"github.com/roboclub/notification-api/pkg/httputil"
	"github.com/roboclub/notification-api/pkg/logger"
)

type testAPI struct {
	engine *gin.Engine
	tokens *auth.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := preference.NewService(memory.NewSettingsRepository(), log)

	tokens := auth.NewTokenService("test-secret", time.Hour)
	authMW := middleware.NewAuthMiddleware(tokens)

	engine := gin.New()
	api := engine.Group("/api/v1")
	api.Use(authMW.Authenticate())
	NewHandler(svc).RegisterRoutes(api)

	return &testAPI{engine: engine, tokens: tokens}
}

func (a *testAPI) request(t *testing.T, method, token string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, "/api/v1/settings", reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (a *testAPI) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := a.tokens.Generate(userID, auth.RoleMember)
	require.NoError(t, err)
	return token
}

func settingsFromResponse(t *testing.T, resp httputil.Response) model.NotificationSettings {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	raw, err := json.Marshal(data["settings"])
	require.NoError(t, err)
	var settings model.NotificationSettings
	require.NoError(t, json.Unmarshal(raw, &settings))
	return settings
}

func TestGetSettingsRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.request(t, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestGetSettingsReturnsDefaults(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()

	rec, resp := api.request(t, http.MethodGet, api.token(t, userID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	settings := settingsFromResponse(t, resp)
	assert.Equal(t, userID, settings.UserID)
	assert.True(t, settings.Email.Enabled)
	assert.False(t, settings.SMS.Enabled)
	assert.Equal(t, "22:00", settings.QuietHours.StartTime)
}

func TestUpdateSettingsPartialPatch(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	token := api.token(t, userID)

	rec, resp := api.request(t, http.MethodPut, token, map[string]interface{}{
		"email": map[string]interface{}{"newsletters": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	settings := settingsFromResponse(t, resp)
	assert.False(t, settings.Email.Newsletters)
	assert.True(t, settings.Email.Enabled, "unpatched siblings survive")
	assert.True(t, settings.Email.ProjectUpdates)
	assert.True(t, settings.Push.Newsletters)

	// The merge persisted.
	_, getResp := api.request(t, http.MethodGet, token, nil)
	persisted := settingsFromResponse(t, getResp)
	assert.False(t, persisted.Email.Newsletters)
	assert.True(t, persisted.Email.Enabled)
}

func TestUpdateSettingsQuietHours(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, uuid.New())

	rec, resp := api.request(t, http.MethodPut, token, map[string]interface{}{
		"quietHours": map[string]interface{}{"startTime": "23:30", "timezone": "Europe/Berlin"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	settings := settingsFromResponse(t, resp)
	assert.Equal(t, "23:30", settings.QuietHours.StartTime)
	assert.Equal(t, "08:00", settings.QuietHours.EndTime)
	assert.Equal(t, "Europe/Berlin", settings.QuietHours.Timezone)
	assert.True(t, settings.QuietHours.Enabled)
}

func TestUpdateSettingsRejectsBadClock(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, uuid.New())

	rec, resp := api.request(t, http.MethodPut, token, map[string]interface{}{
		"quietHours": map[string]interface{}{"startTime": "25:00"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestUpdateSettingsRejectsMalformedBody(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, uuid.New())

	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
