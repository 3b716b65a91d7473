// Package codec validates and normalizes incoming behavior event batches.
// It is a pure transform: no storage, no side effects.
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"foliopulse/api/models"
)

// ValidationError marks a malformed batch. Handlers map it to a 400; nothing
// carrying this error is retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event batch: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IncomingEvent is the wire shape of one client event. Timestamp is epoch
// milliseconds; Data is decoded per Type into a typed payload.
type IncomingEvent struct {
	SessionID string          `json:"sessionId"`
	Timestamp int64           `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// TrackRequest is the ingestion endpoint body.
type TrackRequest struct {
	Events     []IncomingEvent `json:"events"`
	DeviceType string          `json:"deviceType,omitempty"`
}

// Batch is a validated, ordered event sequence for a single client session
// key. Event SessionID fields are left empty; the caller attributes them to
// the durable session after identity resolution.
type Batch struct {
	SessionKey string
	DeviceType models.DeviceType
	Events     []models.RawEvent
}

// DecodeBatch validates a raw ingestion request. The protocol is strictly
// one session per batch: the first event's sessionId binds the whole batch,
// and events naming a different session are rejected outright.
func DecodeBatch(req TrackRequest, now time.Time) (*Batch, error) {
	if len(req.Events) == 0 {
		return nil, invalid("empty event array")
	}
	key := req.Events[0].SessionID
	if key == "" {
		return nil, invalid("first event has no sessionId")
	}

	batch := &Batch{
		SessionKey: key,
		DeviceType: models.ParseDeviceType(req.DeviceType),
		Events:     make([]models.RawEvent, 0, len(req.Events)),
	}

	for i, ev := range req.Events {
		if ev.SessionID != "" && ev.SessionID != key {
			return nil, invalid("event %d belongs to session %q, batch is bound to %q", i, ev.SessionID, key)
		}
		t := models.EventType(ev.Type)
		if !models.ValidEventType(t) {
			return nil, invalid("event %d has unknown type %q", i, ev.Type)
		}
		payload, err := DecodePayload(t, ev.Data)
		if err != nil {
			return nil, invalid("event %d: %v", i, err)
		}
		ts := now
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp).UTC()
		}
		batch.Events = append(batch.Events, models.RawEvent{
			Type:      t,
			Timestamp: ts,
			Payload:   payload,
		})
	}

	return batch, nil
}

// DecodePayload decodes the loose JSON data of one event into its typed
// variant. Unknown fields are ignored; missing fields zero out. The rollup
// engine uses the same decoder when replaying stored history.
func DecodePayload(t models.EventType, data json.RawMessage) (models.Payload, error) {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	switch t {
	case models.EventPageview:
		var p models.PageviewPayload
		return p, decode(data, &p)
	case models.EventScroll:
		var p models.ScrollPayload
		return p, decode(data, &p)
	case models.EventClick:
		var p models.ClickPayload
		return p, decode(data, &p)
	case models.EventHover:
		var p models.HoverPayload
		return p, decode(data, &p)
	case models.EventTime:
		var p models.TimePayload
		return p, decode(data, &p)
	case models.EventNavigation:
		var p models.NavigationPayload
		return p, decode(data, &p)
	case models.EventInteraction:
		var p models.InteractionPayload
		return p, decode(data, &p)
	case models.EventIdle:
		var p models.IdlePayload
		return p, decode(data, &p)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func decode(data json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
