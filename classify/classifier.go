// Package classify turns a session's behavior features into a cached persona
// label, throttled per session and guarded by an update-acceptance policy.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"foliopulse/api/models"
)

// Features is the classifier input: the current aggregate row plus a freshly
// derived behavior vector.
type Features struct {
	SessionID  string                    `json:"sessionId"`
	DeviceType models.DeviceType         `json:"deviceType"`
	Aggregate  models.AggregatedBehavior `json:"aggregate"`
	Vector     []float64                 `json:"vector"`
}

// Classifier is the external persona classification service. Provider
// selection and fallback behind this interface are somebody else's problem.
type Classifier interface {
	Classify(ctx context.Context, f Features) (models.Classification, error)
}

// HTTPClassifier posts features to the external model service. Every call is
// bounded by a hard timeout; a slow classifier is a failed classifier.
type HTTPClassifier struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPClassifier builds the client from CLASSIFIER_URL and
// CLASSIFIER_TIMEOUT_SECONDS (default 10).
func NewHTTPClassifier() (*HTTPClassifier, error) {
	url := os.Getenv("CLASSIFIER_URL")
	if url == "" {
		return nil, fmt.Errorf("CLASSIFIER_URL environment variable is not set")
	}
	timeout := 10 * time.Second
	if raw := os.Getenv("CLASSIFIER_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid CLASSIFIER_TIMEOUT_SECONDS: %q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}
	return &HTTPClassifier{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, f Features) (models.Classification, error) {
	var result models.Classification

	body, err := json.Marshal(f)
	if err != nil {
		return result, fmt.Errorf("failed to encode features: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("failed to build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return result, fmt.Errorf("classifier call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return result, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if !models.ValidPersona(result.Persona) {
		return result, fmt.Errorf("classifier returned unknown persona %q", result.Persona)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return result, fmt.Errorf("classifier returned confidence %v outside [0,1]", result.Confidence)
	}
	return result, nil
}

// Heuristic is the rule-based fallback used when the AI path is disabled.
// It scores each persona from the behavior vector and picks the strongest
// signal, with a modest confidence ceiling so an AI verdict can displace it.
type Heuristic struct{}

func (Heuristic) Classify(_ context.Context, f Features) (models.Classification, error) {
	v := f.Vector
	if len(v) != models.VectorDims {
		return models.Classification{}, fmt.Errorf("feature vector has %d dims, want %d", len(v), models.VectorDims)
	}

	scores := map[models.Persona]float64{
		models.PersonaRecruiter: v[0]*0.8 + v[6]*0.2,
		models.PersonaEngineer:  v[8]*0.7 + v[1]*0.3,
		models.PersonaDesigner:  v[2]*0.6 + v[4]*0.4,
		models.PersonaFounder:   boost(f.Aggregate.OpenedAiIntakeForm, 0.9, v[9]*0.4),
	}

	best := models.PersonaExplorer
	bestScore := 0.15 // explorer floor; anything weaker stays explorer
	for persona, score := range scores {
		if score > bestScore {
			best = persona
			bestScore = score
		}
	}

	mood := models.MoodExploring
	switch {
	case f.Aggregate.IdleTime > 120:
		mood = models.MoodIdle
	case v[10] >= 0.8:
		mood = models.MoodSkimming
	case v[6] >= 0.6:
		mood = models.MoodFocused
	}

	confidence := 0.3 + 0.4*bestScore
	if confidence > 0.7 {
		confidence = 0.7
	}

	return models.Classification{
		Persona:    best,
		Confidence: confidence,
		Mood:       mood,
		Rationale:  "heuristic signal match",
	}, nil
}

func boost(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}
