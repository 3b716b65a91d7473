package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"foliopulse/api/classify"
	"foliopulse/api/logger"
	"foliopulse/api/store"
)

type PersonaHandlers struct {
	Gate     *classify.Gate
	Sessions *store.SessionStore
	log      *logger.Logger
}

func NewPersonaHandlers(gate *classify.Gate, sessions *store.SessionStore, log *logger.Logger) *PersonaHandlers {
	return &PersonaHandlers{Gate: gate, Sessions: sessions, log: log}
}

type classifyRequest struct {
	SessionID string `json:"sessionId"`
	UseAI     bool   `json:"useAI"`
}

// Classify triggers a classification attempt for a session, subject to the
// gate's cooldown and acceptance policy.
func (h *PersonaHandlers) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "sessionId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	classification, err := h.Gate.Request(ctx, req.SessionID, req.UseAI)
	if err != nil {
		h.log.Warn("classification request rejected", "sessionId", req.SessionID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown session"})
		return
	}

	resp := gin.H{"success": true}
	if classification != nil {
		resp["classification"] = classification
	}
	c.JSON(http.StatusOK, resp)
}

// GetPersona returns the session's cached classification for the frontend
// personalization read path. No classifier call is made here.
func (h *PersonaHandlers) GetPersona(c *gin.Context) {
	sessionID := c.Param("sessionId")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	session, err := h.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		h.log.Error("session lookup failed", "sessionId", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load session"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Unknown session"})
		return
	}

	resp := gin.H{"success": true}
	if cached := session.Cached(); cached != nil {
		resp["classification"] = cached
	}
	c.JSON(http.StatusOK, resp)
}
