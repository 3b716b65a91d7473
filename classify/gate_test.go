package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"foliopulse/api/logger"
	"foliopulse/api/models"
)

type fakeSessions struct {
	sessions map[string]*models.Session
	updates  int
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (*models.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeSessions) UpdateClassification(_ context.Context, id string, c models.Classification) error {
	sess := f.sessions[id]
	p := c.Persona
	sess.Persona = &p
	sess.Confidence = c.Confidence
	sess.Mood = c.Mood
	f.updates++
	return nil
}

type fakeBehaviors struct {
	rows map[string]*models.AggregatedBehavior
}

func (f *fakeBehaviors) Get(_ context.Context, sessionID string) (*models.AggregatedBehavior, error) {
	return f.rows[sessionID], nil
}

type fakeClassifier struct {
	result models.Classification
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, Features) (models.Classification, error) {
	f.calls++
	return f.result, f.err
}

func session(id string) *models.Session {
	return &models.Session{ID: id, DeviceType: models.DeviceDesktop, ConsentGiven: true}
}

func classifiedSession(id string, persona models.Persona, confidence float64) *models.Session {
	s := session(id)
	s.Persona = &persona
	s.Confidence = confidence
	s.Mood = models.MoodExploring
	return s
}

func newTestGate(sessions *fakeSessions, classifier Classifier, limiter Limiter) *Gate {
	return NewGate(sessions, &fakeBehaviors{}, classifier, limiter, logger.NewNop())
}

func TestGate_FirstClassificationAccepted(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{"s1": session("s1")}}
	cls := &fakeClassifier{result: models.Classification{
		Persona: models.PersonaEngineer, Confidence: 0.8, Mood: models.MoodFocused,
	}}
	gate := newTestGate(sessions, cls, NewMemoryLimiter())

	got, err := gate.Request(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got == nil || got.Persona != models.PersonaEngineer {
		t.Fatalf("classification = %+v", got)
	}
	if sessions.updates != 1 {
		t.Fatalf("updates = %d, want 1", sessions.updates)
	}
}

func TestGate_CooldownSuppressesSecondCall(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{"s1": session("s1")}}
	cls := &fakeClassifier{result: models.Classification{
		Persona: models.PersonaEngineer, Confidence: 0.8, Mood: models.MoodFocused,
	}}

	clock := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return clock }

	gate := newTestGate(sessions, cls, limiter)

	if _, err := gate.Request(context.Background(), "s1", true); err != nil {
		t.Fatalf("first request: %v", err)
	}

	clock = clock.Add(10 * time.Second)
	got, err := gate.Request(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if cls.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1 (cooldown)", cls.calls)
	}
	if got == nil || got.Persona != models.PersonaEngineer {
		t.Fatalf("expected cached classification inside cooldown, got %+v", got)
	}

	clock = clock.Add(25 * time.Second)
	cls.result.Confidence = 0.9
	if _, err := gate.Request(context.Background(), "s1", true); err != nil {
		t.Fatalf("third request: %v", err)
	}
	if cls.calls != 2 {
		t.Fatalf("classifier calls = %d, want 2 after cooldown expiry", cls.calls)
	}
}

func TestGate_SameLabelLowerConfidenceDiscarded(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{
		"s1": classifiedSession("s1", models.PersonaEngineer, 0.7),
	}}
	cls := &fakeClassifier{result: models.Classification{
		Persona: models.PersonaEngineer, Confidence: 0.65, Mood: models.MoodFocused,
	}}
	gate := newTestGate(sessions, cls, NewMemoryLimiter())

	got, err := gate.Request(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if sessions.updates != 0 {
		t.Fatalf("cache updated on same-label lower-confidence result")
	}
	if got.Confidence != 0.7 {
		t.Fatalf("returned confidence = %v, want cached 0.7", got.Confidence)
	}
}

func TestGate_LabelChangeAccepted(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{
		"s1": classifiedSession("s1", models.PersonaEngineer, 0.7),
	}}
	cls := &fakeClassifier{result: models.Classification{
		Persona: models.PersonaRecruiter, Confidence: 0.5, Mood: models.MoodSkimming,
	}}
	gate := newTestGate(sessions, cls, NewMemoryLimiter())

	got, err := gate.Request(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if sessions.updates != 1 {
		t.Fatalf("label change must update the cache")
	}
	if got.Persona != models.PersonaRecruiter || got.Confidence != 0.5 {
		t.Fatalf("classification = %+v", got)
	}
}

func TestGate_ClassifierFailureKeepsCache(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{
		"s1": classifiedSession("s1", models.PersonaDesigner, 0.6),
	}}
	cls := &fakeClassifier{err: errors.New("model timeout")}
	gate := newTestGate(sessions, cls, NewMemoryLimiter())

	got, err := gate.Request(context.Background(), "s1", true)
	if err != nil {
		t.Fatalf("classifier failure must be swallowed, got %v", err)
	}
	if got == nil || got.Persona != models.PersonaDesigner || got.Confidence != 0.6 {
		t.Fatalf("cached classification disturbed: %+v", got)
	}
	if sessions.updates != 0 {
		t.Fatalf("cache updated despite classifier failure")
	}
}

func TestGate_UnknownSession(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{}}
	gate := newTestGate(sessions, &fakeClassifier{}, NewMemoryLimiter())

	if _, err := gate.Request(context.Background(), "missing", true); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestGate_FallbackWhenAIDisabled(t *testing.T) {
	sessions := &fakeSessions{sessions: map[string]*models.Session{"s1": session("s1")}}
	ai := &fakeClassifier{result: models.Classification{
		Persona: models.PersonaEngineer, Confidence: 0.9, Mood: models.MoodFocused,
	}}
	gate := newTestGate(sessions, ai, NewMemoryLimiter())

	got, err := gate.Request(context.Background(), "s1", false)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if ai.calls != 0 {
		t.Fatalf("AI classifier called with useAI=false")
	}
	if got == nil || !models.ValidPersona(got.Persona) {
		t.Fatalf("heuristic result = %+v", got)
	}
}
