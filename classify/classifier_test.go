package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"foliopulse/api/models"
)

func featuresFor(agg models.AggregatedBehavior, vector []float64) Features {
	return Features{SessionID: "s1", DeviceType: models.DeviceDesktop, Aggregate: agg, Vector: vector}
}

func TestHeuristic_EngineerSignal(t *testing.T) {
	v := models.ZeroVector()
	v[1] = 0.8 // code samples / 10
	v[8] = 1.0 // code samples / 5

	got, err := Heuristic{}.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, v))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Persona != models.PersonaEngineer {
		t.Fatalf("persona = %q, want engineer", got.Persona)
	}
	if got.Confidence <= 0 || got.Confidence > 0.7 {
		t.Fatalf("confidence = %v, want (0, 0.7]", got.Confidence)
	}
}

func TestHeuristic_NoSignalFallsBackToExplorer(t *testing.T) {
	got, err := Heuristic{}.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, models.ZeroVector()))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Persona != models.PersonaExplorer {
		t.Fatalf("persona = %q, want explorer", got.Persona)
	}
}

func TestHeuristic_RejectsWrongVectorLength(t *testing.T) {
	if _, err := (Heuristic{}).Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, []float64{1, 2})); err == nil {
		t.Fatalf("expected error for wrong vector length")
	}
}

func TestHTTPClassifier_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"persona":"recruiter","confidence":0.82,"mood":"skimming","rationale":"resume focus"}`))
	}))
	defer srv.Close()

	c := &HTTPClassifier{URL: srv.URL, Timeout: 2 * time.Second, Client: srv.Client()}
	got, err := c.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, models.ZeroVector()))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Persona != models.PersonaRecruiter || got.Confidence != 0.82 {
		t.Fatalf("result = %+v", got)
	}
}

func TestHTTPClassifier_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &HTTPClassifier{URL: srv.URL, Timeout: 2 * time.Second, Client: srv.Client()}
	if _, err := c.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, models.ZeroVector())); err == nil {
		t.Fatalf("expected error on 503")
	}
}

func TestHTTPClassifier_UnknownPersonaRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"persona":"timelord","confidence":0.9,"mood":"focused"}`))
	}))
	defer srv.Close()

	c := &HTTPClassifier{URL: srv.URL, Timeout: 2 * time.Second, Client: srv.Client()}
	if _, err := c.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, models.ZeroVector())); err == nil {
		t.Fatalf("expected error for out-of-set persona")
	}
}

func TestHTTPClassifier_TimeoutIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := &HTTPClassifier{URL: srv.URL, Timeout: 50 * time.Millisecond, Client: srv.Client()}
	if _, err := c.Classify(context.Background(), featuresFor(models.AggregatedBehavior{}, models.ZeroVector())); err == nil {
		t.Fatalf("expected timeout error")
	}
}
