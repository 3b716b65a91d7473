package store

import (
	"context"
	"fmt"
	"time"

	"foliopulse/api/codec"
	"foliopulse/api/database"
	"foliopulse/api/logger"
	"foliopulse/api/models"
	"foliopulse/api/utils"
)

// EventStore owns the raw behavior event stream in ClickHouse: append-only
// batch inserts from ingestion, history reads for the rollup job, retention
// deletes, and the admin stats aggregations.
type EventStore struct {
	DB  *database.ClickHouseClient
	log *logger.Logger
}

func NewEventStore(chClient *database.ClickHouseClient, log *logger.Logger) *EventStore {
	return &EventStore{DB: chClient, log: log}
}

// InsertEvents appends a validated batch. Raw storage is never contingent on
// aggregation; callers insert here before touching the aggregate row.
func (s *EventStore) InsertEvents(ctx context.Context, events []models.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO behavior_events (event_id, session_id, event_type, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		payload, err := event.EncodePayload()
		if err != nil {
			s.log.Warn("skipping event with unencodable payload", "eventId", event.EventID, "error", err)
			continue
		}
		if err := batch.Append(
			event.EventID,
			event.SessionID,
			string(event.Type),
			event.Timestamp,
			string(payload),
		); err != nil {
			s.log.Warn("error appending event to batch", "eventId", event.EventID, "error", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// EligibleSessions returns the distinct session ids that have at least one
// event older than the cutoff. Sessions still producing only fresh events are
// left to incremental aggregation.
func (s *EventStore) EligibleSessions(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT DISTINCT session_id
		FROM behavior_events
		WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.log.Warn("error scanning eligible session id", "error", err)
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during eligible session scan: %w", err)
	}
	return ids, nil
}

// SessionHistory loads a session's full raw event history in timestamp order,
// re-decoding stored payloads into their typed variants.
func (s *EventStore) SessionHistory(ctx context.Context, sessionID string) ([]models.RawEvent, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT event_id, event_type, timestamp, payload
		FROM behavior_events
		WHERE session_id = ?
		ORDER BY timestamp ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var (
			eventID   string
			eventType string
			ts        time.Time
			payload   string
		)
		if err := rows.Scan(&eventID, &eventType, &ts, &payload); err != nil {
			s.log.Warn("error scanning history row", "sessionId", sessionID, "error", err)
			continue
		}
		t := models.EventType(eventType)
		decoded, err := codec.DecodePayload(t, []byte(payload))
		if err != nil {
			s.log.Warn("skipping history event with undecodable payload", "eventId", eventID, "error", err)
			continue
		}
		events = append(events, models.RawEvent{
			EventID:   eventID,
			SessionID: sessionID,
			Type:      t,
			Timestamp: ts,
			Payload:   decoded,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during session history query: %w", err)
	}
	return events, nil
}

// DeleteOlderThan drops all events past the retention cutoff, regardless of
// whether they were ever rolled up.
func (s *EventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	err := s.DB.Conn.Exec(ctx, `DELETE FROM behavior_events WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete expired events: %w", err)
	}
	return nil
}

type EventCountByTime struct {
	Time      time.Time `json:"time"`
	EventType *string   `json:"eventType,omitempty"`
	Count     uint64    `json:"count"`
}

type TopPathResult struct {
	PagePath string `json:"pagePath"`
	Count    uint64 `json:"count"`
}

// EventCountsOverTime buckets event counts by interval, optionally filtered
// to a single event type.
func (s *EventStore) EventCountsOverTime(ctx context.Context, interval string, start, end time.Time, eventTypeFilter string) ([]EventCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(timestamp) as time_bucket, count() as total_events", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE timestamp >= ? AND timestamp <= ?"
	orderByCols := "time_bucket ASC"
	isFilteringByType := eventTypeFilter != ""

	if isFilteringByType {
		selectCols += ", event_type"
		groupByCols += ", event_type"
		whereClause += " AND event_type = ?"
		args = append(args, eventTypeFilter)
		orderByCols += ", event_type ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM behavior_events
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query event counts over time: %w", err)
	}
	defer rows.Close()

	var results []EventCountByTime
	for rows.Next() {
		var (
			timeBucket  time.Time
			count       uint64
			eventTypeDB string
			current     EventCountByTime
		)
		if isFilteringByType {
			if err := rows.Scan(&timeBucket, &count, &eventTypeDB); err != nil {
				s.log.Warn("error scanning event count row", "error", err)
				continue
			}
			current.EventType = &eventTypeDB
		} else {
			if err := rows.Scan(&timeBucket, &count); err != nil {
				s.log.Warn("error scanning event count row", "error", err)
				continue
			}
		}
		current.Time = timeBucket
		current.Count = count
		results = append(results, current)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during event count query: %w", err)
	}
	return results, nil
}

// UniqueSessionsOverTime buckets distinct visitor sessions by interval.
func (s *EventStore) UniqueSessionsOverTime(ctx context.Context, interval string, start, end time.Time) ([]EventCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(timestamp) AS time_bucket, uniq(session_id) AS unique_sessions
		FROM behavior_events
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique sessions over time: %w", err)
	}
	defer rows.Close()

	var results []EventCountByTime
	for rows.Next() {
		var timeBucket time.Time
		var unique uint64
		if err := rows.Scan(&timeBucket, &unique); err != nil {
			s.log.Warn("error scanning unique session row", "error", err)
			continue
		}
		results = append(results, EventCountByTime{Time: timeBucket, Count: unique})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique sessions: %w", err)
	}
	return results, nil
}

// TopPaths returns the most viewed page paths, extracted from pageview
// payload JSON.
func (s *EventStore) TopPaths(ctx context.Context, start, end time.Time, limit uint64) ([]TopPathResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT JSONExtractString(payload, 'path') AS page_path, count() AS view_count
		FROM behavior_events
		WHERE event_type = 'pageview' AND timestamp >= ? AND timestamp <= ?
		GROUP BY page_path
		ORDER BY view_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top page paths: %w", err)
	}
	defer rows.Close()

	var results []TopPathResult
	for rows.Next() {
		var pagePath string
		var count uint64
		if err := rows.Scan(&pagePath, &count); err != nil {
			s.log.Warn("error scanning top path row", "error", err)
			continue
		}
		results = append(results, TopPathResult{PagePath: pagePath, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top page paths: %w", err)
	}
	return results, nil
}
