// Package handler exposes the HTTP surface: token issue, the WebSocket
// endpoint and the admin API.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/config"
	"whisperchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler holds what the HTTP routes need.
type Handler struct {
	Hub     *chathub.ManagerService
	Groups  *chathub.GroupRegistry
	Storage storage.Storage

	secret     []byte
	tokenTTL   time.Duration
	adminToken string
	now        func() time.Time
	logger     *slog.Logger
}

// NewHandler creates a Handler. store may be nil, in which case the audit
// history route answers 503.
func NewHandler(hub *chathub.ManagerService, groups *chathub.GroupRegistry, store storage.Storage, cfg config.ServerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Hub:        hub,
		Groups:     groups,
		Storage:    store,
		secret:     []byte(cfg.JWTSecret),
		tokenTTL:   cfg.TokenTTL,
		adminToken: cfg.AdminToken,
		now:        time.Now,
		logger:     logger.With("component", "http"),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.POST("/token", h.IssueToken)
	r.GET("/ws", h.ServeWebSocket)

	admin := r.Group("/api/admin", h.requireAdmin)
	admin.GET("/online", h.ListOnline)
	admin.GET("/groups", h.ListGroups)
	admin.GET("/audit", h.ListAudit)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.Hub.ClientCount()})
}
