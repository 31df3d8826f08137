package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	errLoadLogs     = "failed to load logs"
	errLoadAlerts   = "failed to load alerts"
	errInvalidLimit = "invalid 'limit'; expected a positive integer"
)

// parseLimit reads the optional ?limit= query. Zero means "service default".
func parseLimit(c *gin.Context) (int, bool) {
	qs := c.Query("limit")
	if qs == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(qs)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return limit, true
}

// recentLogs returns the newest system log events, newest first.
func (h *Handler) recentLogs(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
		return
	}

	events, err := h.services.EventLog.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadLogs, "logs_list_failed", err, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// recentAlerts returns the newest security alerts, newest first.
func (h *Handler) recentAlerts(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
		return
	}

	alerts, err := h.services.EventLog.RecentAlerts(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadAlerts, "alerts_list_failed", err, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}
