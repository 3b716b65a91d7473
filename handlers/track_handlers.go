package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"foliopulse/api/aggregate"
	"foliopulse/api/codec"
	"foliopulse/api/logger"
	"foliopulse/api/models"
	"foliopulse/api/utils"
)

// SessionResolver maps a fingerprint hash to its durable session.
type SessionResolver interface {
	Resolve(ctx context.Context, fingerprintHash string, deviceType models.DeviceType) (*models.Session, error)
}

// DeltaApplier merges a batch delta into the live aggregate row.
type DeltaApplier interface {
	ApplyDelta(ctx context.Context, sessionID string, d aggregate.Delta) error
}

// EventInserter appends raw events to the event stream.
type EventInserter interface {
	InsertEvents(ctx context.Context, events []models.RawEvent) error
}

type TrackHandlers struct {
	Sessions  SessionResolver
	Behaviors DeltaApplier
	Events    EventInserter
	log       *logger.Logger
}

func NewTrackHandlers(sessions SessionResolver, behaviors DeltaApplier, events EventInserter, log *logger.Logger) *TrackHandlers {
	return &TrackHandlers{
		Sessions:  sessions,
		Behaviors: behaviors,
		Events:    events,
		log:       log,
	}
}

// Track ingests one event batch. Malformed batches get a 400; storage
// unavailability is swallowed with a success-and-zero-effect response so
// tracking never blocks the visitor's browser.
func (h *TrackHandlers) Track(c *gin.Context) {
	var req codec.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	batch, err := codec.DecodeBatch(req, time.Now().UTC())
	if err != nil {
		var verr *codec.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Reason})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid event batch"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	session, err := h.Sessions.Resolve(ctx, utils.HashFingerprint(batch.SessionKey), batch.DeviceType)
	if err != nil {
		h.log.Error("session resolution failed, dropping batch", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": true, "eventsProcessed": 0})
		return
	}

	for i := range batch.Events {
		batch.Events[i].EventID = uuid.New().String()
		batch.Events[i].SessionID = session.ID
	}

	// Raw events are persisted first and unconditionally; a failing
	// aggregate update must never cause event loss.
	if err := h.Events.InsertEvents(ctx, batch.Events); err != nil {
		h.log.Error("raw event insert failed, dropping batch", "sessionId", session.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"success": true, "eventsProcessed": 0})
		return
	}

	if err := h.Behaviors.ApplyDelta(ctx, session.ID, aggregate.FromBatch(batch.Events)); err != nil {
		h.log.Error("incremental aggregate update failed, events retained for rollup",
			"sessionId", session.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "eventsProcessed": len(batch.Events)})
}
