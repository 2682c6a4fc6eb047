package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const sessionColumns = `id, owner_id, kind, unit_ids, status, start_time, end_time, luck_bonus,
	event_id, choices, choice_timeout, timeout_action, selected_choice, result, completed_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var unitIDs []byte
	var choices, result []byte
	var eventID, timeoutAction, selectedChoice sql.NullString
	var choiceTimeout, completedAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Kind, &unitIDs, &sess.Status,
		&sess.StartTime, &sess.EndTime, &sess.LuckBonus, &eventID, &choices,
		&choiceTimeout, &timeoutAction, &selectedChoice, &result, &completedAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(unitIDs) > 0 {
		if err := json.Unmarshal(unitIDs, &sess.UnitIDs); err != nil {
			return nil, err
		}
	}
	sess.Choices = choices
	sess.Result = result
	sess.EventID = eventID.String
	sess.TimeoutAction = timeoutAction.String
	sess.SelectedChoice = selectedChoice.String
	if choiceTimeout.Valid {
		t := choiceTimeout.Time
		sess.ChoiceTimeout = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (s *Store) InsertSessionTx(ctx context.Context, tx *sql.Tx, sess Session) (string, error) {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	unitIDs, err := json.Marshal(sess.UnitIDs)
	if err != nil {
		return "", err
	}
	var choices any
	if len(sess.Choices) > 0 {
		choices = []byte(sess.Choices)
	}
	var choiceTimeout any
	if sess.ChoiceTimeout != nil {
		choiceTimeout = *sess.ChoiceTimeout
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, owner_id, kind, unit_ids, status, start_time, end_time, luck_bonus,
			event_id, choices, choice_timeout, timeout_action)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sess.ID, sess.OwnerID, sess.Kind, unitIDs, sess.Status, sess.StartTime, sess.EndTime,
		sess.LuckBonus, nullIfEmpty(sess.EventID), choices, choiceTimeout, nullIfEmpty(sess.TimeoutAction))
	return sess.ID, err
}

// FinishSessionTx moves a session to a terminal status, recording the chosen
// choice and stored result. Guarded on the current status so a session is
// finished exactly once; the stored result is what idempotent retries return.
func (s *Store) FinishSessionTx(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, selectedChoice string, result json.RawMessage, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = $3, selected_choice = $4, result = $5, completed_at = $6
		WHERE id = $1 AND status = $2
	`, id, fromStatus, toStatus, nullIfEmpty(selectedChoice), []byte(result), now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotMatched
	}
	return nil
}

// CountOpenSessionsForUnit guards against double-booking at start time; the
// authoritative exclusion is still the unit-status guarded update.
func (s *Store) CountOpenSessionsForUnit(ctx context.Context, ownerID, unitID string) (int, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM sessions
		WHERE owner_id = $1 AND status IN ($2, $3) AND unit_ids @> to_jsonb(ARRAY[$4]::text[])
	`, ownerID, SessionInProgress, SessionWaitingChoice, unitID)
	var c int
	err := row.Scan(&c)
	return c, err
}

// CountPendingVisitors caps pending visitor events at one per owner.
func (s *Store) CountPendingVisitors(ctx context.Context, ownerID string) (int, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM sessions
		WHERE owner_id = $1 AND kind = $2 AND status IN ($3, $4)
	`, ownerID, KindVisitor, SessionInProgress, SessionWaitingChoice)
	var c int
	err := row.Scan(&c)
	return c, err
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
