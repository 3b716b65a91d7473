package classify

import (
	"context"
	"fmt"

	"foliopulse/api/aggregate"
	"foliopulse/api/logger"
	"foliopulse/api/models"
)

// SessionReader is the slice of the session store the gate needs.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*models.Session, error)
	UpdateClassification(ctx context.Context, id string, c models.Classification) error
}

// AggregateReader provides the current aggregate row for feature assembly.
type AggregateReader interface {
	Get(ctx context.Context, sessionID string) (*models.AggregatedBehavior, error)
}

// Gate throttles classification requests and applies the update-acceptance
// policy to the session's cached persona. Classification is best-effort
// personalization: classifier failures are logged and swallowed, never
// surfaced as pipeline failures.
type Gate struct {
	sessions  SessionReader
	behaviors AggregateReader
	ai        Classifier
	fallback  Classifier
	limiter   Limiter
	log       *logger.Logger
}

func NewGate(sessions SessionReader, behaviors AggregateReader, ai Classifier, limiter Limiter, log *logger.Logger) *Gate {
	return &Gate{
		sessions:  sessions,
		behaviors: behaviors,
		ai:        ai,
		fallback:  Heuristic{},
		limiter:   limiter,
		log:       log,
	}
}

// Request attempts a classification for the session. Inside the cooldown
// window it is a silent no-op returning the last cached classification.
// Returns nil when the session has never been successfully classified.
func (g *Gate) Request(ctx context.Context, sessionID string, useAI bool) (*models.Classification, error) {
	session, err := g.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("unknown session %q", sessionID)
	}

	allowed, err := g.limiter.Allow(ctx, sessionID)
	if err != nil {
		// The throttle is best-effort; if it is unreachable we classify
		// anyway rather than block personalization.
		g.log.Warn("cooldown check failed, proceeding", "sessionId", sessionID, "error", err)
		allowed = true
	}
	if !allowed {
		return session.Cached(), nil
	}

	features, err := g.assembleFeatures(ctx, session)
	if err != nil {
		g.log.Warn("feature assembly failed, keeping cached classification", "sessionId", sessionID, "error", err)
		return session.Cached(), nil
	}

	classifier := g.ai
	if !useAI || classifier == nil {
		classifier = g.fallback
	}

	result, err := classifier.Classify(ctx, features)
	if err != nil {
		g.log.Warn("classifier call failed, keeping cached classification", "sessionId", sessionID, "error", err)
		return session.Cached(), nil
	}

	cached := session.Cached()
	if !accepts(cached, result) {
		g.log.Debug("classification discarded by acceptance policy",
			"sessionId", sessionID, "persona", result.Persona, "confidence", result.Confidence)
		return cached, nil
	}

	if err := g.sessions.UpdateClassification(ctx, sessionID, result); err != nil {
		g.log.Error("failed to cache classification", "sessionId", sessionID, "error", err)
		return cached, nil
	}
	return &result, nil
}

// accepts implements the update policy: take the new result only when there
// is no prior classification, the persona label changed, or the confidence
// strictly improved. Same-label equal-or-lower confidence is discarded to
// avoid confidence flapping.
func accepts(cached *models.Classification, result models.Classification) bool {
	if cached == nil {
		return true
	}
	if result.Persona != cached.Persona {
		return true
	}
	return result.Confidence > cached.Confidence
}

func (g *Gate) assembleFeatures(ctx context.Context, session *models.Session) (Features, error) {
	agg, err := g.behaviors.Get(ctx, session.ID)
	if err != nil {
		return Features{}, err
	}
	if agg == nil {
		agg = &models.AggregatedBehavior{SessionID: session.ID}
	}
	return Features{
		SessionID:  session.ID,
		DeviceType: session.DeviceType,
		Aggregate:  *agg,
		Vector:     aggregate.Vector(agg),
	}, nil
}
