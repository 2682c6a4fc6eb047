// Package session runs the time-windowed state machine behind deliveries,
// fishing trips and special visitors: in_progress -> {waiting_choice ->
// completed} | completed | expired. Expiry is lazy; nothing ticks sessions
// forward, the next observer performs the catch-up transition.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

var (
	ErrWrongState         = errors.New("session_wrong_state")
	ErrChoiceWindowClosed = errors.New("choice_window_closed")
	ErrUnknownChoice      = errors.New("unknown_choice")
	ErrNotDue             = errors.New("session_not_due")
	ErrUnknownKind        = errors.New("unknown_session_kind")
	ErrNoUnits            = errors.New("no_units_selected")
	ErrUnitsUnavailable   = errors.New("units_unavailable")
	ErrUnitFatigued       = errors.New("unit_fatigued")
	ErrVisitorPending     = errors.New("visitor_pending")
	ErrBadDuration        = errors.New("bad_fishing_duration")
)

// Catch is one merged fishing line: duplicate item ids within a session
// collapse into a single count.
type Catch struct {
	ItemID string `json:"itemId"`
	Count  int64  `json:"count"`
}

// Result is the terminal outcome stored on the session row. Retries of a
// finished session get this back verbatim, never a re-roll.
type Result struct {
	Outcome   string            `json:"outcome"` // completed | expired
	ChoiceID  string            `json:"choiceId,omitempty"`
	ByTimeout bool              `json:"byTimeout,omitempty"`
	Message   string            `json:"message,omitempty"`
	Rewards   []mutator.Applied `json:"rewards,omitempty"`
	Catches   []Catch           `json:"catches,omitempty"`
	Attempts  int               `json:"attempts,omitempty"`
}

// Started is what a successful start returns to the client.
type Started struct {
	SessionID     string                `json:"sessionId"`
	Kind          string                `json:"kind"`
	Status        string                `json:"status"`
	EndTime       time.Time             `json:"endTime"`
	Event         *configstore.EventDef `json:"event,omitempty"`
	ChoiceTimeout *time.Time            `json:"choiceTimeout,omitempty"`
}

// StartParams carries the client's start request after transport decoding.
type StartParams struct {
	Kind           string
	UnitIDs        []string
	FishingMinutes int
	BaitItemID     string
}

type Machine struct {
	store *store.Store
	mut   *mutator.Mutator
	cfg   *configstore.Store
	rng   reward.RandomSource
	now   func() time.Time
}

func NewMachine(st *store.Store, mut *mutator.Mutator, cfg *configstore.Store, rng reward.RandomSource, now func() time.Time) *Machine {
	if rng == nil {
		rng = reward.DefaultRNG()
	}
	if now == nil {
		now = time.Now
	}
	return &Machine{store: st, mut: mut, cfg: cfg, rng: rng, now: now}
}

// Start validates the subject units, occupies them and inserts the session
// in one transaction. A delivery may be interrupted by a weighted event, in
// which case the session starts in waiting_choice with a timeout default.
func (m *Machine) Start(ctx context.Context, ownerID string, p StartParams) (*Started, error) {
	switch p.Kind {
	case store.KindDelivery, store.KindFishing:
		return m.startUnitSession(ctx, ownerID, p)
	case store.KindVisitor:
		return m.startVisitor(ctx, ownerID)
	default:
		return nil, ErrUnknownKind
	}
}

func (m *Machine) startUnitSession(ctx context.Context, ownerID string, p StartParams) (*Started, error) {
	if len(p.UnitIDs) == 0 {
		return nil, ErrNoUnits
	}
	units, err := m.store.ListOwnedUnitsByIDs(ctx, ownerID, p.UnitIDs)
	if err != nil {
		return nil, err
	}
	if len(units) != len(p.UnitIDs) {
		return nil, ErrUnitsUnavailable
	}
	for _, u := range units {
		if u.Status != store.UnitIdle {
			return nil, ErrUnitsUnavailable
		}
		if u.Fatigue > FatigueCeiling {
			return nil, ErrUnitFatigued
		}
	}
	// A unit still attached to an open session cannot start another, even if
	// its row already reads idle. The guarded occupy below stays authoritative.
	for _, id := range p.UnitIDs {
		open, err := m.store.CountOpenSessionsForUnit(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, ErrUnitsUnavailable
		}
	}

	now := m.now()
	sess := store.Session{
		OwnerID:   ownerID,
		Kind:      p.Kind,
		UnitIDs:   p.UnitIDs,
		Status:    store.SessionInProgress,
		StartTime: now,
		LuckBonus: 1.0,
	}

	var event *configstore.EventDef
	switch p.Kind {
	case store.KindDelivery:
		sess.EndTime = now.Add(DeliveryDuration(BaseDeliveryDuration, avgSpeed(units)))
		if m.rng.Float64() < EventChance(avgLuck(units)) {
			def, err := m.pickEvent(ctx, m.cfg.DeliveryEvents)
			if err != nil {
				return nil, err
			}
			event = def
		}
	case store.KindFishing:
		if p.FishingMinutes < minFishingMinutes || p.FishingMinutes > maxFishingMinutes {
			return nil, ErrBadDuration
		}
		sess.EndTime = now.Add(time.Duration(p.FishingMinutes) * time.Minute)
		sess.LuckBonus = LuckBonus(avgLuck(units), p.BaitItemID != "")
	}
	if event != nil {
		if err := attachEvent(&sess, event, now); err != nil {
			return nil, err
		}
	}

	busyStatus := store.UnitDelivery
	if p.Kind == store.KindFishing {
		busyStatus = store.UnitFishing
	}

	err = m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if err := m.mut.OccupyUnitsTx(ctx, tx, ownerID, p.UnitIDs, busyStatus, FatigueCeiling); err != nil {
			return err
		}
		if p.Kind == store.KindFishing && p.BaitItemID != "" {
			if err := m.mut.ConsumeItemTx(ctx, tx, ownerID, p.BaitItemID, 1, "fishing_bait", ""); err != nil {
				return err
			}
		}
		id, err := m.store.InsertSessionTx(ctx, tx, sess)
		if err != nil {
			return err
		}
		sess.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sess.ID).Str("kind", p.Kind).Str("owner_id", ownerID).
		Int("units", len(p.UnitIDs)).Time("end_time", sess.EndTime).Msg("session started")
	return startedFrom(&sess, event), nil
}

// startVisitor opens a choice-only session with no subject units. At most
// one visitor may be pending per owner.
func (m *Machine) startVisitor(ctx context.Context, ownerID string) (*Started, error) {
	pending, err := m.store.CountPendingVisitors(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, ErrVisitorPending
	}
	def, err := m.pickEvent(ctx, m.cfg.VisitorEvents)
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := store.Session{
		OwnerID:   ownerID,
		Kind:      store.KindVisitor,
		Status:    store.SessionInProgress,
		StartTime: now,
		EndTime:   now.Add(time.Duration(def.TimeLimitSeconds) * time.Second),
		LuckBonus: 1.0,
	}
	if err := attachEvent(&sess, def, now); err != nil {
		return nil, err
	}

	err = m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := m.store.InsertSessionTx(ctx, tx, sess)
		if err != nil {
			return err
		}
		sess.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", sess.ID).Str("owner_id", ownerID).Str("event_id", def.EventID).
		Msg("visitor arrived")
	return startedFrom(&sess, def), nil
}

// pickEvent draws one weighted event definition from a config table.
func (m *Machine) pickEvent(ctx context.Context, load func(context.Context) ([]configstore.EventDef, error)) (*configstore.EventDef, error) {
	defs, err := load(ctx)
	if err != nil {
		return nil, err
	}
	table := make(reward.Table, 0, len(defs))
	for _, d := range defs {
		table = append(table, reward.Entry{ID: d.EventID, Weight: d.Weight})
	}
	picked, err := reward.SelectWeighted(table, m.rng)
	if err != nil {
		return nil, configstore.ErrConfigurationMissing
	}
	for i := range defs {
		if defs[i].EventID == picked.ID {
			return &defs[i], nil
		}
	}
	return nil, configstore.ErrConfigurationMissing
}

func startedFrom(sess *store.Session, event *configstore.EventDef) *Started {
	return &Started{
		SessionID:     sess.ID,
		Kind:          sess.Kind,
		Status:        sess.Status,
		EndTime:       sess.EndTime,
		Event:         event,
		ChoiceTimeout: sess.ChoiceTimeout,
	}
}

// attachEvent freezes the drawn event onto the session row: the stored copy,
// not the live config, is what resolveChoice later reads, so a config
// republish mid-session cannot change the choices in flight.
func attachEvent(sess *store.Session, def *configstore.EventDef, now time.Time) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	timeout := now.Add(time.Duration(def.TimeLimitSeconds) * time.Second)
	sess.Choices = raw
	sess.EventID = def.EventID
	sess.Status = store.SessionWaitingChoice
	sess.ChoiceTimeout = &timeout
	sess.TimeoutAction = def.DefaultChoice
	return nil
}

// decodeEvent restores the event definition frozen on the session row.
func decodeEvent(sess *store.Session) (*configstore.EventDef, error) {
	if len(sess.Choices) == 0 {
		return nil, ErrUnknownChoice
	}
	var def configstore.EventDef
	if err := json.Unmarshal(sess.Choices, &def); err != nil {
		return nil, err
	}
	return &def, nil
}
