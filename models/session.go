package models

import "time"

type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// ParseDeviceType normalizes a client-supplied device type, defaulting to desktop.
func ParseDeviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceMobile:
		return DeviceMobile
	case DeviceTablet:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

type Persona string

const (
	PersonaRecruiter Persona = "recruiter"
	PersonaEngineer  Persona = "engineer"
	PersonaDesigner  Persona = "designer"
	PersonaFounder   Persona = "founder"
	PersonaExplorer  Persona = "explorer"
)

func ValidPersona(p Persona) bool {
	switch p {
	case PersonaRecruiter, PersonaEngineer, PersonaDesigner, PersonaFounder, PersonaExplorer:
		return true
	default:
		return false
	}
}

type Mood string

const (
	MoodFocused   Mood = "focused"
	MoodExploring Mood = "exploring"
	MoodSkimming  Mood = "skimming"
	MoodIdle      Mood = "idle"
)

// Session is the durable identity for a returning visitor, keyed by the
// salted fingerprint hash. Sessions are never hard-deleted; their telemetry
// children expire on their own schedule.
type Session struct {
	ID              string     `json:"id"`
	FingerprintHash string     `json:"-"`
	DeviceType      DeviceType `json:"deviceType"`
	ConsentGiven    bool       `json:"consentGiven"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastSeen        time.Time  `json:"lastSeen"`

	// Cached classification. Persona is nil until the first accepted
	// classifier result.
	Persona    *Persona `json:"persona,omitempty"`
	Confidence float64  `json:"confidence"`
	Mood       Mood     `json:"mood,omitempty"`
}

// Classification is the classifier's verdict for one session. Rationale is
// returned to callers but not persisted on the session row.
type Classification struct {
	Persona    Persona `json:"persona"`
	Confidence float64 `json:"confidence"`
	Mood       Mood    `json:"mood"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Cached returns the session's stored classification, or nil if the session
// has never been classified.
func (s *Session) Cached() *Classification {
	if s.Persona == nil {
		return nil
	}
	return &Classification{
		Persona:    *s.Persona,
		Confidence: s.Confidence,
		Mood:       s.Mood,
	}
}
