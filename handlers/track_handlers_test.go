package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"foliopulse/api/aggregate"
	"foliopulse/api/logger"
	"foliopulse/api/models"
)

type fakeResolver struct {
	session *models.Session
	err     error
}

func (f *fakeResolver) Resolve(context.Context, string, models.DeviceType) (*models.Session, error) {
	return f.session, f.err
}

type fakeApplier struct {
	applied []aggregate.Delta
	err     error
}

func (f *fakeApplier) ApplyDelta(_ context.Context, _ string, d aggregate.Delta) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, d)
	return nil
}

type fakeInserter struct {
	inserted []models.RawEvent
	err      error
}

func (f *fakeInserter) InsertEvents(_ context.Context, events []models.RawEvent) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, events...)
	return nil
}

func trackRouter(resolver *fakeResolver, applier *fakeApplier, inserter *fakeInserter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTrackHandlers(resolver, applier, inserter, logger.NewNop())
	r.POST("/api/track", h.Track)
	return r
}

func postTrack(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/track", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validBatch = `{
	"deviceType": "mobile",
	"events": [
		{"sessionId": "fp-1", "type": "scroll", "timestamp": 1765700000000, "data": {"maxDepth": 70}},
		{"sessionId": "fp-1", "type": "click", "timestamp": 1765700001000, "data": {"element": "code-sample-card"}}
	]
}`

func resolved() *fakeResolver {
	return &fakeResolver{session: &models.Session{ID: "sess-uuid", DeviceType: models.DeviceMobile}}
}

func TestTrack_Success(t *testing.T) {
	applier := &fakeApplier{}
	inserter := &fakeInserter{}
	w := postTrack(t, trackRouter(resolved(), applier, inserter), validBatch)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success         bool `json:"success"`
		EventsProcessed int  `json:"eventsProcessed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.EventsProcessed != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if len(inserter.inserted) != 2 {
		t.Fatalf("inserted %d raw events, want 2", len(inserter.inserted))
	}
	for _, ev := range inserter.inserted {
		if ev.SessionID != "sess-uuid" || ev.EventID == "" {
			t.Fatalf("event not attributed: %+v", ev)
		}
	}
	if len(applier.applied) != 1 {
		t.Fatalf("applied %d deltas, want 1", len(applier.applied))
	}
	if applier.applied[0].OpenedCodeSamplesCount != 1 {
		t.Fatalf("delta = %+v", applier.applied[0])
	}
}

func TestTrack_MalformedBatchIs400(t *testing.T) {
	w := postTrack(t, trackRouter(resolved(), &fakeApplier{}, &fakeInserter{}), `{"events": []}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTrack_StorageUnavailableIsSwallowed(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("clickhouse down")}
	w := postTrack(t, trackRouter(resolved(), &fakeApplier{}, inserter), validBatch)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (tracking must not block the browser)", w.Code)
	}
	var resp struct {
		Success         bool `json:"success"`
		EventsProcessed int  `json:"eventsProcessed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.EventsProcessed != 0 {
		t.Fatalf("response = %+v, want success with zero effect", resp)
	}
}

func TestTrack_AggregateFailureDoesNotLoseEvents(t *testing.T) {
	applier := &fakeApplier{err: errors.New("aggregate row locked")}
	inserter := &fakeInserter{}
	w := postTrack(t, trackRouter(resolved(), applier, inserter), validBatch)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(inserter.inserted) != 2 {
		t.Fatalf("raw events lost on aggregate failure: %d inserted", len(inserter.inserted))
	}
	var resp struct {
		EventsProcessed int `json:"eventsProcessed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EventsProcessed != 2 {
		t.Fatalf("eventsProcessed = %d, want 2 (raw events were persisted)", resp.EventsProcessed)
	}
}

func TestTrack_ResolverFailureIsSwallowed(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("postgres down")}
	inserter := &fakeInserter{}
	w := postTrack(t, trackRouter(resolver, &fakeApplier{}, inserter), validBatch)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(inserter.inserted) != 0 {
		t.Fatalf("events inserted without a resolved session")
	}
}
