package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Handler struct {
	db *sqlx.DB
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", h.Check)
}

func (h *Handler) Check(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	if h.db != nil {
		ctx := c.Request.Context()
		if err := h.db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unreachable"
		}
	}

	c.JSON(status, gin.H{
		"status":    dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
