// Package aggregate implements the per-event-type merge rules shared by live
// ingestion and the batch rollup job, plus the behavior vector derivation.
package aggregate

import (
	"strings"
	"time"

	"foliopulse/api/models"
)

// HomePath is the canonical homepage path for the timeOnHomepage accumulator.
const HomePath = "/"

// Delta accumulates the effect of a batch of events on an aggregate row.
// Every field is a merge instruction: counters add, flags OR, scroll depth
// takes the max, the navigation path replaces wholesale (last write wins).
type Delta struct {
	TimeOnHomepage           float64 // seconds to add
	ScrollDepth              float64 // candidate max, normalized 0-1
	ClickedResume            bool
	OpenedCodeSamplesCount   int
	VisitedProjectsCount     int
	OpenedDesignShowcase     bool
	PlayedDemosCount         int
	OpenedAiIntakeForm       bool
	InteractedWithAnimations bool
	IdleTime                 float64  // seconds to add
	NavigationPath           []string // nil means leave untouched
}

// Empty reports whether applying the delta would change nothing, in which
// case no row write happens at all.
func (d *Delta) Empty() bool {
	return d.TimeOnHomepage == 0 &&
		d.ScrollDepth == 0 &&
		!d.ClickedResume &&
		d.OpenedCodeSamplesCount == 0 &&
		d.VisitedProjectsCount == 0 &&
		!d.OpenedDesignShowcase &&
		d.PlayedDemosCount == 0 &&
		!d.OpenedAiIntakeForm &&
		!d.InteractedWithAnimations &&
		d.IdleTime == 0 &&
		d.NavigationPath == nil
}

// Apply folds one event into the delta.
func (d *Delta) Apply(ev models.RawEvent) {
	switch p := ev.Payload.(type) {
	case models.TimePayload:
		if p.Path == HomePath {
			d.TimeOnHomepage += float64(p.TimeOnPage) / 1000.0
		}
	case models.ScrollPayload:
		depth := p.MaxDepth / 100.0
		if depth > d.ScrollDepth {
			d.ScrollDepth = depth
		}
	case models.ClickPayload:
		if clickMatches(p, "resume") {
			d.ClickedResume = true
		}
		if clickMatches(p, "code") {
			d.OpenedCodeSamplesCount++
		}
		if clickMatches(p, "project") {
			d.VisitedProjectsCount++
		}
		if clickMatches(p, "design") {
			d.OpenedDesignShowcase = true
		}
		if clickMatches(p, "demo") {
			d.PlayedDemosCount++
		}
		if clickMatches(p, "intake") {
			d.OpenedAiIntakeForm = true
		}
	case models.InteractionPayload:
		if p.InteractionType == "animation" {
			d.InteractedWithAnimations = true
		}
	case models.IdlePayload:
		d.IdleTime += float64(p.IdleDuration) / 1000.0
	case models.NavigationPayload:
		if p.Sequence != nil {
			d.NavigationPath = p.Sequence
		}
	}
	// pageview and hover events carry no aggregate metric; they count only
	// toward the total event count recomputed by rollup.
}

func clickMatches(p models.ClickPayload, needle string) bool {
	return strings.Contains(strings.ToLower(p.Element), needle) ||
		strings.Contains(strings.ToLower(p.Section), needle)
}

// FromBatch folds a validated batch into a single delta.
func FromBatch(events []models.RawEvent) Delta {
	var d Delta
	for _, ev := range events {
		d.Apply(ev)
	}
	return d
}

// Snapshot recomputes a fresh aggregate from a session's full raw event
// history, the rollup-side counterpart of FromBatch. The returned row carries
// the derived behavior vector and the total event count.
func Snapshot(sessionID string, events []models.RawEvent, now time.Time) models.AggregatedBehavior {
	d := FromBatch(events)
	agg := models.AggregatedBehavior{
		SessionID:                sessionID,
		TimeOnHomepage:           d.TimeOnHomepage,
		ScrollDepth:              d.ScrollDepth,
		ClickedResume:            d.ClickedResume,
		OpenedCodeSamplesCount:   d.OpenedCodeSamplesCount,
		VisitedProjectsCount:     d.VisitedProjectsCount,
		OpenedDesignShowcase:     d.OpenedDesignShowcase,
		PlayedDemosCount:         d.PlayedDemosCount,
		OpenedAiIntakeForm:       d.OpenedAiIntakeForm,
		InteractedWithAnimations: d.InteractedWithAnimations,
		IdleTime:                 d.IdleTime,
		TotalEventCount:          len(events),
		NavigationPath:           d.NavigationPath,
		UpdatedAt:                now,
	}
	agg.BehaviorVector = Vector(&agg)
	return agg
}
