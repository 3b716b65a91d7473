package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventPageview    EventType = "pageview"
	EventScroll      EventType = "scroll"
	EventClick       EventType = "click"
	EventHover       EventType = "hover"
	EventTime        EventType = "time"
	EventNavigation  EventType = "navigation"
	EventInteraction EventType = "interaction"
	EventIdle        EventType = "idle"
)

func ValidEventType(t EventType) bool {
	switch t {
	case EventPageview, EventScroll, EventClick, EventHover,
		EventTime, EventNavigation, EventInteraction, EventIdle:
		return true
	default:
		return false
	}
}

// Payload is the tagged union over per-event-type data. The codec decodes the
// loose client JSON into exactly one of the variants below, so downstream code
// never reaches into raw maps.
type Payload interface {
	eventPayload()
}

type PageviewPayload struct {
	Path     string `json:"path"`
	Referrer string `json:"referrer,omitempty"`
}

type ScrollPayload struct {
	Path     string  `json:"path,omitempty"`
	MaxDepth float64 `json:"maxDepth"` // percent, 0-100
}

type ClickPayload struct {
	Element string `json:"element"`
	Section string `json:"section,omitempty"`
}

type HoverPayload struct {
	Element    string `json:"element"`
	DurationMs int64  `json:"duration,omitempty"`
}

type TimePayload struct {
	Path       string `json:"path"`
	TimeOnPage int64  `json:"timeOnPage"` // milliseconds
}

type NavigationPayload struct {
	Sequence []string `json:"sequence"`
}

type InteractionPayload struct {
	InteractionType string `json:"interactionType"`
	Target          string `json:"target,omitempty"`
}

type IdlePayload struct {
	IdleDuration int64 `json:"idleDuration"` // milliseconds
}

func (PageviewPayload) eventPayload()    {}
func (ScrollPayload) eventPayload()      {}
func (ClickPayload) eventPayload()       {}
func (HoverPayload) eventPayload()       {}
func (TimePayload) eventPayload()        {}
func (NavigationPayload) eventPayload()  {}
func (InteractionPayload) eventPayload() {}
func (IdlePayload) eventPayload()        {}

// RawEvent is one captured interaction, attributed to a resolved session.
// Persisted rows keep the payload as JSON so the rollup job can re-decode the
// full history with the same codec that validated it on the way in.
type RawEvent struct {
	EventID   string
	SessionID string
	Type      EventType
	Timestamp time.Time
	Payload   Payload
}

// EncodePayload serializes the typed payload back to the JSON stored in the
// event row.
func (e *RawEvent) EncodePayload() (json.RawMessage, error) {
	if e.Payload == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(e.Payload)
}
