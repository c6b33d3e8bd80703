package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/roboclub/notification-api/internal/service/delivery"
	"github.com/roboclub/notification-api/internal/service/dispatch"
	notificationService "github.com/roboclub/notification-api/internal/service/notification"
	"github.com/roboclub/notification-api/internal/service/preference"
	"github.com/roboclub/notification-api/pkg/auth"
	"github.com/roboclub/notification-api/pkg/httputil"
	"github.com/roboclub/notification-api/pkg/logger"
)

type nullBroker struct{}

func (nullBroker) Publish(context.Context, string, interface{}) error { return nil }
func (nullBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}
func (nullBroker) Close() error { return nil }

type testAPI struct {
	engine *gin.Engine
	tokens *auth.TokenService
	repo   *memory.NotificationRepository
	svc    *notificationService.Service
	prefs  *preference.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	repo := memory.NewNotificationRepository()
	settingsRepo := memory.NewSettingsRepository()
	jobs := memory.NewDeliveryJobRepository()

	svc := notificationService.NewService(repo, log)
	prefs := preference.NewService(settingsRepo, log)
	tracker := delivery.NewTracker(repo, log)
	dispatcher := dispatch.NewService(svc, prefs, jobs, tracker, nullBroker{}, log)

	tokens := auth.NewTokenService("test-secret", time.Hour)
	authMW := middleware.NewAuthMiddleware(tokens)

	engine := gin.New()
	api := engine.Group("/api/v1")
	api.Use(authMW.Authenticate())
	NewHandler(svc, dispatcher, tracker).RegisterRoutes(api, authMW)

	return &testAPI{engine: engine, tokens: tokens, repo: repo, svc: svc, prefs: prefs}
}

func (a *testAPI) token(t *testing.T, userID uuid.UUID, role auth.Role) string {
	t.Helper()
	token, err := a.tokens.Generate(userID, role)
	require.NoError(t, err)
	return token
}

func (a *testAPI) request(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
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

func (a *testAPI) seed(t *testing.T, userID uuid.UUID) *model.Notification {
	t.Helper()
	n, err := a.svc.Create(context.Background(), &model.CreateNotificationRequest{
		UserID:   userID,
		Title:    "Media uploaded",
		Message:  "New photos from the regional competition.",
		Type:     model.TypeMediaUpload,
		Priority: model.PriorityLow,
		Category: model.CategoryInfo,
	})
	require.NoError(t, err)
	return n
}

func dataMap(t *testing.T, resp httputil.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", resp.Data)
	return data
}

func TestListRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.request(t, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
}

func TestListOwnMailbox(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	api.seed(t, userID)
	api.seed(t, uuid.New()) // someone else's mailbox

	rec, resp := api.request(t, http.MethodGet, "/api/v1/notifications", api.token(t, userID, auth.RoleMember), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	items, ok := data["notifications"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)

	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, stats["total"])

	pagination, ok := data["pagination"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 20, pagination["limit"])
	assert.Equal(t, false, pagination["hasMore"])
}

func TestListPaginationQuery(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	for i := 0; i < 7; i++ {
		api.seed(t, userID)
	}

	rec, resp := api.request(t, http.MethodGet, "/api/v1/notifications?limit=2&skip=4", api.token(t, userID, auth.RoleMember), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	items := data["notifications"].([]interface{})
	assert.Len(t, items, 2)
	pagination := data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["limit"])
	assert.EqualValues(t, 4, pagination["skip"])
	assert.Equal(t, true, pagination["hasMore"])
}

func TestListAdminOverride(t *testing.T) {
	api := newTestAPI(t)
	member := uuid.New()
	api.seed(t, member)

	path := fmt.Sprintf("/api/v1/notifications?userId=%s", member)

	rec, _ := api.request(t, http.MethodGet, path, api.token(t, uuid.New(), auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := api.request(t, http.MethodGet, path, api.token(t, uuid.New(), auth.RoleMember), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, resp.Success)
}

func TestListRejectsBadQuery(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(t, uuid.New(), auth.RoleMember)

	rec, _ := api.request(t, http.MethodGet, "/api/v1/notifications?limit=lots", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.request(t, http.MethodGet, "/api/v1/notifications?type=smoke_signal", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNotification(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	n := api.seed(t, userID)

	rec, resp := api.request(t, http.MethodGet, "/api/v1/notifications/"+n.ID.String(), api.token(t, userID, auth.RoleMember), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	got := data["notification"].(map[string]interface{})
	assert.Equal(t, n.ID.String(), got["id"])

	// Another member must not see it.
	rec, _ = api.request(t, http.MethodGet, "/api/v1/notifications/"+n.ID.String(), api.token(t, uuid.New(), auth.RoleMember), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetNotFound(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.request(t, http.MethodGet, "/api/v1/notifications/"+uuid.NewString(), api.token(t, uuid.New(), auth.RoleMember), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.request(t, http.MethodGet, "/api/v1/notifications/not-a-uuid", api.token(t, uuid.New(), auth.RoleMember), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRequiresServiceRole(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]interface{}{
		"userId":   uuid.NewString(),
		"title":    "System maintenance",
		"message":  "The platform goes down at midnight.",
		"type":     "system_alert",
		"priority": "high",
		"category": "system",
	}

	rec, _ := api.request(t, http.MethodPost, "/api/v1/notifications", api.token(t, uuid.New(), auth.RoleMember), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := api.request(t, http.MethodPost, "/api/v1/notifications", api.token(t, uuid.New(), auth.RoleService), body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, resp.Success)

	data := dataMap(t, resp)
	created := data["notification"].(map[string]interface{})
	assert.Equal(t, "System maintenance", created["title"])
	channels, ok := data["channels"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, channels, "in_app")
}

func TestCreateValidationError(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.request(t, http.MethodPost, "/api/v1/notifications", api.token(t, uuid.New(), auth.RoleService), map[string]interface{}{
		"title": "missing everything else",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, http.StatusBadRequest, resp.Error.Code)
}

func TestMarkReadEndpoint(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	n := api.seed(t, userID)
	token := api.token(t, userID, auth.RoleMember)

	rec, resp := api.request(t, http.MethodPut, "/api/v1/notifications/"+n.ID.String()+"/read", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	got := data["notification"].(map[string]interface{})
	assert.Equal(t, true, got["read"])
	firstReadAt := got["readAt"]

	// Second call is a no-op, not an error.
	rec, resp = api.request(t, http.MethodPut, "/api/v1/notifications/"+n.ID.String()+"/read", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = dataMap(t, resp)["notification"].(map[string]interface{})
	assert.Equal(t, firstReadAt, got["readAt"])
}

func TestMarkAllReadEndpoint(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		api.seed(t, userID)
	}
	token := api.token(t, userID, auth.RoleMember)

	rec, resp := api.request(t, http.MethodPut, "/api/v1/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.EqualValues(t, 3, data["markedCount"])
	assert.EqualValues(t, 3, data["totalNotifications"])

	rec, resp = api.request(t, http.MethodPut, "/api/v1/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = dataMap(t, resp)
	assert.EqualValues(t, 0, data["markedCount"])
}

func TestArchiveEndpoint(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	n := api.seed(t, userID)
	token := api.token(t, userID, auth.RoleMember)

	rec, resp := api.request(t, http.MethodPut, "/api/v1/notifications/"+n.ID.String()+"/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := dataMap(t, resp)["notification"].(map[string]interface{})
	assert.Equal(t, true, got["archived"])

	// Gone from the default listing.
	_, listResp := api.request(t, http.MethodGet, "/api/v1/notifications", token, nil)
	items := dataMap(t, listResp)["notifications"].([]interface{})
	assert.Empty(t, items)
}

func TestRecordOutcomeEndpoint(t *testing.T) {
	api := newTestAPI(t)
	userID := uuid.New()
	n := api.seed(t, userID)
	workerToken := api.token(t, uuid.New(), auth.RoleService)

	path := "/api/v1/notifications/" + n.ID.String() + "/delivery/email"
	rec, resp := api.request(t, http.MethodPost, path, workerToken, map[string]interface{}{"sent": true})
	require.Equal(t, http.StatusOK, rec.Code)

	got := dataMap(t, resp)["notification"].(map[string]interface{})
	deliveryState := got["delivery"].(map[string]interface{})
	email := deliveryState["email"].(map[string]interface{})
	assert.Equal(t, true, email["sent"])
	assert.NotNil(t, email["sentAt"])

	// Member tokens cannot report outcomes.
	rec, _ = api.request(t, http.MethodPost, path, api.token(t, userID, auth.RoleMember), map[string]interface{}{"sent": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Unknown channel is a validation error.
	rec, _ = api.request(t, http.MethodPost, "/api/v1/notifications/"+n.ID.String()+"/delivery/fax", workerToken, map[string]interface{}{"sent": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
