package settings

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/roboclub/notification-api/internal/middleware"
	"github.com/roboclub/notification-api/internal/model"
	"github.com/roboclub/notification-api/internal/service/preference"
	apperrors "github.com/roboclub/notification-api/pkg/errors"
	"github.com/roboclub/notification-api/pkg/httputil"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("15:04", fl.Field().String())
			return err == nil
		})
	}
}

type Handler struct {
	service *preference.Service
}

func NewHandler(service *preference.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/settings", h.Get)
	g.PUT("/settings", h.Update)
}

// Get returns the caller's settings, creating the documented defaults on
// first access.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	settings, err := h.service.GetSettings(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"settings": settings})
}

// Update deep-merges a partial settings document into the stored one.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var patch model.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error()))
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), userID, &patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "settings updated", gin.H{"settings": settings})
}
