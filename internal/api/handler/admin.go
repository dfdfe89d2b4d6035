package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"whisperchat/backend/internal/models"
	"whisperchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// AdminHeader carries the admin token.
const AdminHeader = "X-Admin-Token"

func (h *Handler) requireAdmin(c *gin.Context) {
	if h.adminToken == "" {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	got := c.GetHeader(AdminHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
		return
	}
	c.Next()
}

// ListOnline returns the display names of connected users.
func (h *Handler) ListOnline(c *gin.Context) {
	names := h.Hub.OnlineNames()
	c.JSON(http.StatusOK, gin.H{"count": len(names), "users": names})
}

// ListGroups returns a snapshot of every live group.
func (h *Handler) ListGroups(c *gin.Context) {
	groups := lo.FilterMap(h.Groups.GroupNames(), func(name string, _ int) (models.Group, bool) {
		return h.Groups.Group(name)
	})
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// ListAudit returns recorded private messages, newest first. Query
// parameters: user, kind, group, since (RFC 3339) and limit.
func (h *Handler) ListAudit(c *gin.Context) {
	if h.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit storage is not configured"})
		return
	}

	filter := storage.AuditFilter{
		User:  c.Query("user"),
		Kind:  c.Query("kind"),
		Group: c.Query("group"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		filter.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		filter.Limit = limit
	}

	records, err := h.Storage.ListAuditRecords(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list audit records", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
