// Package mutator owns the atomic multi-entity mutation discipline: every
// state change runs as a guarded update inside one transaction, and every
// economic effect writes exactly one ledger entry in that same transaction.
// Concurrent losers get ErrPreconditionFailed instead of corrupted state.
package mutator

import (
	"context"
	"database/sql"
	"errors"

	"pawshop-economy/internal/store"
)

// ErrPreconditionFailed is the caller-facing form of a guarded update whose
// precondition no longer held at write time. Safe to retry after re-reading.
var ErrPreconditionFailed = errors.New("precondition_failed")

type Mutator struct {
	store *store.Store
}

func New(st *store.Store) *Mutator {
	return &Mutator{store: st}
}

// WithTx is the all-or-nothing wrapper every flow runs under.
func (m *Mutator) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := m.store.WithTx(ctx, fn)
	if errors.Is(err, store.ErrNotMatched) {
		return ErrPreconditionFailed
	}
	return err
}

// OccupyUnitsTx flips every unit idle -> busyStatus, each guarded on "still
// idle" and the fatigue ceiling. One unit losing the race fails the whole tx,
// so a unit is never double-booked and partial occupation never persists.
func (m *Mutator) OccupyUnitsTx(ctx context.Context, tx *sql.Tx, ownerID string, unitIDs []string, busyStatus string, maxFatigue int) error {
	for _, id := range unitIDs {
		if err := m.store.TransitionUnitTx(ctx, tx, id, ownerID, store.UnitIdle, busyStatus, maxFatigue); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// ReleaseUnitsTx returns units from busyStatus to idle with fatigue/mood
// side effects. Part of the same tx that finishes the session.
func (m *Mutator) ReleaseUnitsTx(ctx context.Context, tx *sql.Tx, unitIDs []string, busyStatus string, fatigueDelta, moodDelta int) error {
	for _, id := range unitIDs {
		if err := m.store.ReleaseUnitTx(ctx, tx, id, busyStatus, fatigueDelta, moodDelta); err != nil {
			return wrap(err)
		}
	}
	return nil
}

func wrap(err error) error {
	if errors.Is(err, store.ErrNotMatched) {
		return ErrPreconditionFailed
	}
	return err
}
