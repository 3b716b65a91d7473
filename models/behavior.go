package models

import "time"

// VectorDims is the fixed dimensionality of the behavior vector.
const VectorDims = 12

// AggregatedBehavior is the live per-session metrics row. It is mutated
// incrementally by ingestion and periodically rewritten by the rollup job;
// at most one row exists per session.
type AggregatedBehavior struct {
	SessionID string `json:"sessionId"`

	// Counters, summed across rollup runs.
	TimeOnHomepage         float64 `json:"timeOnHomepage"` // seconds
	OpenedCodeSamplesCount int     `json:"openedCodeSamplesCount"`
	VisitedProjectsCount   int     `json:"visitedProjectsCount"`
	PlayedDemosCount       int     `json:"playedDemosCount"`

	// Maxima and flags, overwritten by each rollup snapshot.
	ScrollDepth              float64 `json:"scrollDepth"` // normalized fraction, 0-1
	ClickedResume            bool    `json:"clickedResume"`
	OpenedDesignShowcase     bool    `json:"openedDesignShowcase"`
	OpenedAiIntakeForm       bool    `json:"openedAiIntakeForm"`
	InteractedWithAnimations bool    `json:"interactedWithAnimations"`
	IdleTime                 float64 `json:"idleTime"` // seconds
	TotalEventCount          int     `json:"totalEventCount"`

	// Last-write-wins navigation history.
	NavigationPath []string `json:"navigationPath"`

	BehaviorVector []float64 `json:"behaviorVector"` // always VectorDims long once derived
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ZeroVector is the vector for a session with no history: every dimension
// zero except pacing (0.5) and intake-form interest (0.3 baseline).
func ZeroVector() []float64 {
	v := make([]float64, VectorDims)
	v[10] = 0.5
	v[11] = 0.3
	return v
}
