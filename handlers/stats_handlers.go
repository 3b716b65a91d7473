package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"foliopulse/api/logger"
	"foliopulse/api/store"
)

// StatsHandlers serves the admin dashboard aggregations over the raw event
// stream.
type StatsHandlers struct {
	Events *store.EventStore
	log    *logger.Logger
}

func NewStatsHandlers(events *store.EventStore, log *logger.Logger) *StatsHandlers {
	return &StatsHandlers{Events: events, log: log}
}

// parseTimeRange reads optional RFC3339 start/end query params, defaulting to
// the trailing 7 days. Writes the 400 itself when a param is malformed.
func parseTimeRange(c *gin.Context) (start, end time.Time, ok bool) {
	var err error

	start = time.Now().UTC().Add(-7 * 24 * time.Hour)
	if startParam := c.Query("start"); startParam != "" {
		start, err = time.Parse(time.RFC3339, startParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
	}

	end = time.Now().UTC()
	if endParam := c.Query("end"); endParam != "" {
		end, err = time.Parse(time.RFC3339, endParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return start, end, false
		}
	}

	return start, end, true
}

func (h *StatsHandlers) GetEventCountsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	eventTypeFilter := c.Query("eventType")

	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Events.EventCountsOverTime(ctx, interval, start, end, eventTypeFilter)
	if err != nil {
		h.log.Error("error getting event counts over time", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve event statistics"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetUniqueVisitorsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}

	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Events.UniqueSessionsOverTime(ctx, interval, start, end)
	if err != nil {
		h.log.Error("error getting unique visitors over time", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unique visitor statistics"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetTopPaths(c *gin.Context) {
	start, end, ok := parseTimeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if limitParam := c.Query("limit"); limitParam != "" {
		parsedLimit, err := strconv.ParseUint(limitParam, 10, 64)
		if err != nil || parsedLimit == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsedLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Events.TopPaths(ctx, start, end, limit)
	if err != nil {
		h.log.Error("error getting top page paths", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top page path statistics"})
		return
	}

	c.JSON(http.StatusOK, results)
}
