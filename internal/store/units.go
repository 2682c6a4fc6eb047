package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const unitColumns = `id, owner_id, breed_id, name, rarity, status, attributes, fatigue, mood, created_at, updated_at`

func scanUnit(row interface{ Scan(...any) error }) (*WorkUnit, error) {
	var u WorkUnit
	var attrs []byte
	if err := row.Scan(&u.ID, &u.OwnerID, &u.BreedID, &u.Name, &u.Rarity, &u.Status,
		&attrs, &u.Fatigue, &u.Mood, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &u.Attributes); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func (s *Store) GetUnit(ctx context.Context, id string) (*WorkUnit, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM work_units WHERE id = $1`, id)
	return scanUnit(row)
}

// ListOwnedUnits returns the owner's units filtered by status ("" for all).
func (s *Store) ListOwnedUnits(ctx context.Context, ownerID, status string) ([]WorkUnit, error) {
	q := `SELECT ` + unitColumns + ` FROM work_units WHERE owner_id = $1`
	args := []any{ownerID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += ` ORDER BY created_at ASC`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkUnit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// ListOwnedUnitsByIDs fetches a specific set of units for an owner.
func (s *Store) ListOwnedUnitsByIDs(ctx context.Context, ownerID string, ids []string) ([]WorkUnit, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM work_units
		WHERE owner_id = $1 AND id = ANY($2)
		ORDER BY created_at ASC
	`, ownerID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkUnit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) InsertUnitTx(ctx context.Context, tx *sql.Tx, u WorkUnit) (string, error) {
	if u.ID == "" {
		u.ID = NewID()
	}
	attrs, err := json.Marshal(u.Attributes)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_units (id, owner_id, breed_id, name, rarity, status, attributes, fatigue, mood)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, u.ID, u.OwnerID, u.BreedID, u.Name, u.Rarity, u.Status, attrs, u.Fatigue, u.Mood)
	return u.ID, err
}

// TransitionUnitTx is the vacate/occupy primitive: the status change applies
// only if the unit still holds fromStatus at write time, and the fatigue
// ceiling (when > 0) still holds. Zero rows matched means another request
// won the race; the caller's tx rolls back.
func (s *Store) TransitionUnitTx(ctx context.Context, tx *sql.Tx, unitID, ownerID, fromStatus, toStatus string, maxFatigue int) error {
	q := `
		UPDATE work_units SET status = $4, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND status = $3`
	args := []any{unitID, ownerID, fromStatus, toStatus}
	if maxFatigue > 0 {
		args = append(args, maxFatigue)
		q += fmt.Sprintf(" AND fatigue <= $%d", len(args))
	}
	res, err := tx.ExecContext(ctx, q, args...)
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

// ReleaseUnitTx returns a busy unit to idle with fatigue/mood side effects,
// clamping both gauges to [0,100].
func (s *Store) ReleaseUnitTx(ctx context.Context, tx *sql.Tx, unitID, fromStatus string, fatigueDelta, moodDelta int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE work_units
		SET status = $2,
		    fatigue = LEAST(100, GREATEST(0, fatigue + $3)),
		    mood = LEAST(100, GREATEST(0, mood + $4)),
		    updated_at = now()
		WHERE id = $1 AND status = $5
	`, unitID, UnitIdle, fatigueDelta, moodDelta, fromStatus)
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
