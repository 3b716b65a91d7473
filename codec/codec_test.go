package codec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"foliopulse/api/models"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestDecodeBatch_RejectsEmptyBatch(t *testing.T) {
	_, err := DecodeBatch(TrackRequest{}, testNow)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecodeBatch_RejectsMissingSessionID(t *testing.T) {
	req := TrackRequest{Events: []IncomingEvent{{Type: "click"}}}
	_, err := DecodeBatch(req, testNow)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDecodeBatch_RejectsMixedSessions(t *testing.T) {
	req := TrackRequest{Events: []IncomingEvent{
		{SessionID: "a", Type: "click", Data: json.RawMessage(`{"element":"x"}`)},
		{SessionID: "b", Type: "click", Data: json.RawMessage(`{"element":"y"}`)},
	}}
	_, err := DecodeBatch(req, testNow)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for mixed sessions, got %v", err)
	}
}

func TestDecodeBatch_RejectsUnknownType(t *testing.T) {
	req := TrackRequest{Events: []IncomingEvent{
		{SessionID: "a", Type: "teleport"},
	}}
	if _, err := DecodeBatch(req, testNow); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestDecodeBatch_TypedPayloads(t *testing.T) {
	req := TrackRequest{
		DeviceType: "mobile",
		Events: []IncomingEvent{
			{SessionID: "fp-1", Timestamp: testNow.Add(-time.Minute).UnixMilli(), Type: "time",
				Data: json.RawMessage(`{"path":"/","timeOnPage":45000}`)},
			{SessionID: "fp-1", Type: "scroll",
				Data: json.RawMessage(`{"maxDepth":85}`)},
			{SessionID: "", Type: "navigation",
				Data: json.RawMessage(`{"sequence":["/","/projects"]}`)},
		},
	}

	batch, err := DecodeBatch(req, testNow)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if batch.SessionKey != "fp-1" {
		t.Fatalf("session key = %q", batch.SessionKey)
	}
	if batch.DeviceType != models.DeviceMobile {
		t.Fatalf("device type = %q", batch.DeviceType)
	}
	if len(batch.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch.Events))
	}

	tp, ok := batch.Events[0].Payload.(models.TimePayload)
	if !ok || tp.Path != "/" || tp.TimeOnPage != 45000 {
		t.Fatalf("time payload = %#v", batch.Events[0].Payload)
	}
	sp, ok := batch.Events[1].Payload.(models.ScrollPayload)
	if !ok || sp.MaxDepth != 85 {
		t.Fatalf("scroll payload = %#v", batch.Events[1].Payload)
	}
	np, ok := batch.Events[2].Payload.(models.NavigationPayload)
	if !ok || len(np.Sequence) != 2 {
		t.Fatalf("navigation payload = %#v", batch.Events[2].Payload)
	}
}

func TestDecodeBatch_ZeroTimestampDefaultsToNow(t *testing.T) {
	req := TrackRequest{Events: []IncomingEvent{
		{SessionID: "fp-1", Type: "idle", Data: json.RawMessage(`{"idleDuration":2000}`)},
	}}
	batch, err := DecodeBatch(req, testNow)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if !batch.Events[0].Timestamp.Equal(testNow) {
		t.Fatalf("timestamp = %v, want %v", batch.Events[0].Timestamp, testNow)
	}
}

func TestDecodePayload_MalformedJSON(t *testing.T) {
	if _, err := DecodePayload(models.EventClick, json.RawMessage(`{`)); err == nil {
		t.Fatalf("expected error for malformed payload JSON")
	}
}
