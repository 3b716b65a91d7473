package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"foliopulse/api/models"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, fingerprint_hash, device_type, consent_given, created_at, last_seen, persona, confidence, mood`

// Resolve maps a fingerprint hash to its durable session, creating one on
// first contact. The unique constraint on fingerprint_hash is the only
// correctness mechanism for concurrent first contacts: a losing insert falls
// back to re-reading the winning row. Consent is implied by the arrival of
// telemetry; the consent banner lives upstream.
func (s *SessionStore) Resolve(ctx context.Context, fingerprintHash string, deviceType models.DeviceType) (*models.Session, error) {
	if sess, err := s.getByFingerprint(ctx, fingerprintHash); err != nil {
		return nil, err
	} else if sess != nil {
		if err := s.touch(ctx, sess.ID); err != nil {
			return nil, err
		}
		return sess, nil
	}

	now := time.Now().UTC()
	id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin session create tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, fingerprint_hash, device_type, consent_given, created_at, last_seen)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (fingerprint_hash) DO NOTHING;
	`, id, fingerprintHash, string(deviceType), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read session insert result: %w", err)
	}

	if inserted == 0 {
		// Lost the race; the winner's row is authoritative.
		tx.Rollback()
		sess, err := s.getByFingerprint(ctx, fingerprintHash)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("session for fingerprint vanished after conflicting insert")
		}
		if err := s.touch(ctx, sess.ID); err != nil {
			return nil, err
		}
		return sess, nil
	}

	// New identity: initialize the zero-valued aggregate row alongside.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO aggregated_behaviors (session_id, navigation_path, behavior_vector, updated_at)
		VALUES ($1, '{}', $2, $3)
		ON CONFLICT (session_id) DO NOTHING;
	`, id, pq.Array(models.ZeroVector()), now)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aggregate row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session create: %w", err)
	}

	return &models.Session{
		ID:              id,
		FingerprintHash: fingerprintHash,
		DeviceType:      deviceType,
		ConsentGiven:    true,
		CreatedAt:       now,
		LastSeen:        now,
	}, nil
}

// GetByID fetches a session, returning nil when it does not exist.
func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1;`, id)
	return scanSession(row)
}

func (s *SessionStore) getByFingerprint(ctx context.Context, hash string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE fingerprint_hash = $1;`, hash)
	return scanSession(row)
}

func (s *SessionStore) touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen = $2 WHERE id = $1;`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update last_seen: %w", err)
	}
	return nil
}

// UpdateClassification writes the accepted classifier verdict onto the
// session's cached fields. Acceptance policy is decided by the caller.
func (s *SessionStore) UpdateClassification(ctx context.Context, id string, c models.Classification) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET persona = $2, confidence = $3, mood = $4 WHERE id = $1;
	`, id, string(c.Persona), c.Confidence, string(c.Mood))
	if err != nil {
		return fmt.Errorf("failed to update cached classification: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	sess := &models.Session{}
	var persona, mood sql.NullString
	var confidence sql.NullFloat64

	err := row.Scan(
		&sess.ID,
		&sess.FingerprintHash,
		&sess.DeviceType,
		&sess.ConsentGiven,
		&sess.CreatedAt,
		&sess.LastSeen,
		&persona,
		&confidence,
		&mood,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if persona.Valid {
		p := models.Persona(persona.String)
		sess.Persona = &p
	}
	if confidence.Valid {
		sess.Confidence = confidence.Float64
	}
	if mood.Valid {
		sess.Mood = models.Mood(mood.String)
	}
	return sess, nil
}
