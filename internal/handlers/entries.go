package handlers

import (
	"net/http"
	"strings"

	"github.com/yvesHakizimana/Parking-Management-System/internal/recognition"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errListEntries   = "failed to load entries"
	errUnpaidEntries = "failed to load unpaid entries"
	errStatistics    = "failed to load statistics"
	errInvalidPlate  = "invalid or missing plate; expected format like RAB123C"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// listEntries returns the full visit history for one plate, oldest first.
func (h *Handler) listEntries(c *gin.Context) {
	plate := strings.ToUpper(strings.TrimSpace(c.Query("plate")))
	if !recognition.ValidPlate(plate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidPlate})
		return
	}

	entries, err := h.services.Monitoring.VehicleEntries(c.Request.Context(), plate)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListEntries, "entries_list_failed", err, "plate", plate)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plate":   plate,
		"count":   len(entries),
		"entries": entries,
	})
}

// unpaidEntries lists the open visits still awaiting payment.
func (h *Handler) unpaidEntries(c *gin.Context) {
	entries, err := h.services.Monitoring.UnpaidEntries(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errUnpaidEntries, "entries_unpaid_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// statistics returns the aggregate facility counters.
func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.services.Monitoring.Statistics(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStatistics, "statistics_failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// peripherals reports per-role device link health.
func (h *Handler) peripherals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"roles": h.services.Monitoring.Peripherals(),
	})
}
