// Package rollup implements the periodic batch job that reconciles live
// aggregates against full raw event history and enforces data retention.
package rollup

import (
	"context"
	"time"

	"foliopulse/api/aggregate"
	"foliopulse/api/logger"
	"foliopulse/api/models"
)

const (
	// EligibilityAge gates which sessions get rolled up: only those whose
	// oldest events have aged past this threshold. Fresh sessions stay with
	// incremental aggregation.
	EligibilityAge = 24 * time.Hour

	// RawRetention is how long raw events live, rolled up or not.
	RawRetention = 7 * 24 * time.Hour

	// AggregateRetention is how long an untouched aggregate row survives.
	AggregateRetention = 30 * 24 * time.Hour
)

// EventSource is the raw event history the engine reads from and prunes.
type EventSource interface {
	EligibleSessions(ctx context.Context, cutoff time.Time) ([]string, error)
	SessionHistory(ctx context.Context, sessionID string) ([]models.RawEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// AggregateSink receives recomputed snapshots and stale-row deletes.
type AggregateSink interface {
	MergeSnapshot(ctx context.Context, agg models.AggregatedBehavior) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result summarizes one rollup run. Failed counts sessions whose individual
// rollup errored; those never abort the run.
type Result struct {
	Aggregated int
	Failed     int
}

type Engine struct {
	events     EventSource
	aggregates AggregateSink
	log        *logger.Logger
	now        func() time.Time
}

func NewEngine(events EventSource, aggregates AggregateSink, log *logger.Logger) *Engine {
	return &Engine{
		events:     events,
		aggregates: aggregates,
		log:        log,
		now:        time.Now,
	}
}

// Run executes one rollup pass. It is idempotent for snapshot fields and
// safe to re-run at any time; it may interleave with live ingestion, which
// the merge semantics tolerate.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	now := e.now().UTC()
	var res Result

	sessions, err := e.events.EligibleSessions(ctx, now.Add(-EligibilityAge))
	if err != nil {
		return res, err
	}
	e.log.Info("rollup pass starting", "eligibleSessions", len(sessions))

	for _, sessionID := range sessions {
		if err := e.rollupSession(ctx, sessionID, now); err != nil {
			e.log.Error("session rollup failed", "sessionId", sessionID, "error", err)
			res.Failed++
			continue
		}
		res.Aggregated++
	}

	// Retention runs after aggregation but does not depend on it: events
	// past the window are deleted whether or not they were ever rolled up.
	if err := e.events.DeleteOlderThan(ctx, now.Add(-RawRetention)); err != nil {
		e.log.Error("raw event retention delete failed", "error", err)
	}
	if deleted, err := e.aggregates.DeleteStale(ctx, now.Add(-AggregateRetention)); err != nil {
		e.log.Error("stale aggregate delete failed", "error", err)
	} else if deleted > 0 {
		e.log.Info("deleted stale aggregates", "count", deleted)
	}

	e.log.Info("rollup pass finished", "aggregated", res.Aggregated, "failed", res.Failed)
	return res, nil
}

func (e *Engine) rollupSession(ctx context.Context, sessionID string, now time.Time) error {
	history, err := e.events.SessionHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	snapshot := aggregate.Snapshot(sessionID, history, now)
	return e.aggregates.MergeSnapshot(ctx, snapshot)
}
