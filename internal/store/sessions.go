package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/google/uuid"
)

// SessionRow mirrors one row of intake_sessions.
type SessionRow struct {
	ID          uuid.UUID
	GraphRoot   string
	Phase       string
	Summary     string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// CreateSession records a new interview session.
func (s *Store) CreateSession(ctx context.Context, id uuid.UUID, graphRoot string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO intake_sessions (id, graph_root, phase, started_at)
		VALUES ($1, $2, $3, now())`,
		id, graphRoot, string(session.PhaseCollecting),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession fetches one session row.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*SessionRow, error) {
	var row SessionRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, graph_root, phase, coalesce(summary, ''), started_at, completed_at
		FROM intake_sessions WHERE id = $1`,
		id,
	).Scan(&row.ID, &row.GraphRoot, &row.Phase, &row.Summary, &row.StartedAt, &row.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &row, nil
}

// UpdateSessionPhase moves the persisted session to a new phase. Completion
// also stamps completed_at.
func (s *Store) UpdateSessionPhase(ctx context.Context, id uuid.UUID, phase session.Phase) error {
	var err error
	if phase == session.PhaseComplete {
		_, err = s.pool.Exec(ctx, `
			UPDATE intake_sessions SET phase = $1, completed_at = now() WHERE id = $2`,
			string(phase), id,
		)
	} else {
		_, err = s.pool.Exec(ctx, `
			UPDATE intake_sessions SET phase = $1 WHERE id = $2`,
			string(phase), id,
		)
	}
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	return nil
}

// SetSessionSummary stores the closing summary shown to the respondent.
func (s *Store) SetSessionSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE intake_sessions SET summary = $1 WHERE id = $2`,
		summary, id,
	)
	if err != nil {
		return fmt.Errorf("update session summary: %w", err)
	}
	return nil
}

// AppendInteraction writes one interaction record. The log is append-only;
// corrections add new rows rather than rewriting old ones.
func (s *Store) AppendInteraction(ctx context.Context, sessionID uuid.UUID, rec session.Record) error {
	var extracted []byte
	if rec.Extracted != nil {
		b, err := json.Marshal(rec.Extracted)
		if err != nil {
			return fmt.Errorf("marshal extracted value: %w", err)
		}
		extracted = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO intake_interactions (id, session_id, role, slot_id, text, extracted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), sessionID, rec.Role, rec.SlotID, rec.Text, extracted, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// UpsertSlotValue stores the current value of one slot. Later writes for
// the same slot replace the row, matching in-memory merge semantics.
func (s *Store) UpsertSlotValue(ctx context.Context, sessionID uuid.UUID, slotID string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal slot value: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO intake_slot_values (session_id, slot_id, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, slot_id)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		sessionID, slotID, b,
	)
	if err != nil {
		return fmt.Errorf("upsert slot value: %w", err)
	}
	return nil
}

// SnapshotFilled writes every filled slot in one transaction, used on phase
// transitions so the persisted record matches the review shown on screen.
func (s *Store) SnapshotFilled(ctx context.Context, sessionID uuid.UUID, filled map[string]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for slotID, value := range filled {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal slot %s: %w", slotID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO intake_slot_values (session_id, slot_id, value, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (session_id, slot_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			sessionID, slotID, b,
		)
		if err != nil {
			return fmt.Errorf("upsert slot %s: %w", slotID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its dependent rows, for resets that
// discard the persisted record.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		"DELETE FROM intake_slot_values WHERE session_id = $1",
		"DELETE FROM intake_interactions WHERE session_id = $1",
		"DELETE FROM intake_sessions WHERE id = $1",
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("delete session rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
