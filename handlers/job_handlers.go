package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"foliopulse/api/logger"
	"foliopulse/api/rollup"
)

type JobHandlers struct {
	Engine *rollup.Engine
	log    *logger.Logger
}

func NewJobHandlers(engine *rollup.Engine, log *logger.Logger) *JobHandlers {
	return &JobHandlers{Engine: engine, log: log}
}

// RunRollup is the scheduled trigger for the daily rollup pass. The external
// cron authenticates via the shared secret middleware; re-triggering is safe.
func (h *JobHandlers) RunRollup(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	res, err := h.Engine.Run(ctx)
	if err != nil {
		h.log.Error("rollup run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"message":   "Rollup run failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	message := fmt.Sprintf("Rolled up %d sessions", res.Aggregated)
	if res.Failed > 0 {
		message = fmt.Sprintf("Rolled up %d sessions, %d failed", res.Aggregated, res.Failed)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"aggregatedSessions": res.Aggregated,
		"message":            message,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}
