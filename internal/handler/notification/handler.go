package notification

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roboclub/notification-api/internal/middleware"
	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/service/delivery"
	"github.com/roboclub/notification-api/internal/service/dispatch"
	"github.com/roboclub/notification-api/internal/service/notification"
	"github.com/roboclub/notification-api/pkg/auth"
	apperrors "github.com/roboclub/notification-api/pkg/errors"
	"github.com/roboclub/notification-api/pkg/httputil"
)

type Handler struct {
	service    *notification.Service
	dispatcher *dispatch.Service
	tracker    *delivery.Tracker
}

func NewHandler(service *notification.Service, dispatcher *dispatch.Service, tracker *delivery.Tracker) *Handler {
	return &Handler{
		service:    service,
		dispatcher: dispatcher,
		tracker:    tracker,
	}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	notifications := g.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.GET("/:id", h.Get)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.PUT("/:id/archive", h.Archive)

		producers := notifications.Group("", authMW.RequireRole(auth.RoleService))
		{
			producers.POST("", h.Create)
			producers.POST("/:id/delivery/:channel", h.RecordOutcome)
		}
	}
}

// List answers the console mailbox query: one filtered page plus stats and
// pagination over the same filtered set.
func (h *Handler) List(c *gin.Context) {
	userID, ok := h.scopeUserID(c)
	if !ok {
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), userID, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"notifications": result.Notifications,
		"stats":         result.Stats,
		"pagination": httputil.Pagination{
			Limit:   result.Limit,
			Skip:    result.Skip,
			HasMore: result.HasMore,
		},
	})
}

func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification id"))
		return
	}

	n, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"notification": n})
}

// Create is the producer endpoint: store the notification, decide channel
// eligibility and fan out delivery.
func (h *Handler) Create(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, "notification created", gin.H{
		"notification": result.Notification,
		"channels":     result.Channels,
	})
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification id"))
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), userID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "notification marked as read", gin.H{"notification": n})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	result, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "all notifications marked as read", result)
}

func (h *Handler) Archive(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification id"))
		return
	}

	n, err := h.service.Archive(c.Request.Context(), userID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "notification archived", gin.H{"notification": n})
}

type outcomeRequest struct {
	Sent      bool    `json:"sent"`
	Delivered bool    `json:"delivered"`
	Error     *string `json:"error"`
}

// RecordOutcome lets delivery workers report the result of one transport
// attempt on one channel.
func (h *Handler) RecordOutcome(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid notification id"))
		return
	}
	channel, err := model.ParseChannel(c.Param("channel"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	n, err := h.tracker.RecordOutcome(c.Request.Context(), id, channel, model.Outcome{
		Sent:      req.Sent,
		Delivered: req.Delivered,
		Error:     req.Error,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "delivery outcome recorded", gin.H{"notification": n})
}

// scopeUserID resolves which mailbox the call reads: the caller's own, or,
// for admins, any user via the userId override.
func (h *Handler) scopeUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return uuid.Nil, false
	}

	if override := c.Query("userId"); override != "" {
		if middleware.CallerRole(c) != auth.RoleAdmin {
			httputil.RespondWithError(c, apperrors.Forbidden("userId override requires admin role"))
			return uuid.Nil, false
		}
		parsed, err := uuid.Parse(override)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid userId"))
			return uuid.Nil, false
		}
		return parsed, true
	}
	return userID, true
}

func parseListFilter(c *gin.Context) (model.ListFilter, error) {
	var filter model.ListFilter

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperrors.Validation("invalid limit")
		}
		filter.Limit = limit
	}
	if v := c.Query("skip"); v != "" {
		skip, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperrors.Validation("invalid skip")
		}
		filter.Skip = skip
	}
	if v := c.Query("type"); v != "" {
		t := model.Type(v)
		filter.Type = &t
	}
	if v := c.Query("priority"); v != "" {
		p := model.Priority(v)
		filter.Priority = &p
	}
	if v := c.Query("read"); v != "" {
		read, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperrors.Validation("invalid read flag")
		}
		filter.Read = &read
	}

	return filter, nil
}
