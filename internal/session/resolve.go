package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// ResolveChoice applies the player's answer to a waiting_choice session.
// Terminal sessions return their stored result so client retries are safe.
// Past the choice window the call is rejected; the caller must collect the
// timeout default through CompleteIfDue or ExpireIfOverdue instead.
func (m *Machine) ResolveChoice(ctx context.Context, ownerID, sessionID, choiceID string) (*Result, error) {
	sess, err := m.ownedSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if res := storedResult(sess); res != nil {
		return res, nil
	}
	if sess.Status != store.SessionWaitingChoice {
		return nil, ErrWrongState
	}
	if sess.ChoiceTimeout != nil && m.now().After(*sess.ChoiceTimeout) {
		return nil, ErrChoiceWindowClosed
	}
	def, err := decodeEvent(sess)
	if err != nil {
		return nil, err
	}
	choice := def.Choice(choiceID)
	if choice == nil {
		return nil, ErrUnknownChoice
	}
	return m.finishWithChoice(ctx, sess, choice, store.SessionCompleted, false)
}

// CompleteIfDue performs the time-based completion: plain deliveries pay
// out, fishing sessions roll their catches, and an overdue waiting_choice
// session gets its timeout default applied as a catch-up. Calling before
// endTime fails with ErrNotDue; calling on a terminal session returns the
// stored result.
func (m *Machine) CompleteIfDue(ctx context.Context, ownerID, sessionID string) (*Result, error) {
	sess, err := m.ownedSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if res := storedResult(sess); res != nil {
		return res, nil
	}
	now := m.now()
	if sess.Status == store.SessionWaitingChoice {
		if sess.ChoiceTimeout == nil || now.Before(*sess.ChoiceTimeout) {
			return nil, ErrNotDue
		}
		return m.applyTimeout(ctx, sess)
	}
	if now.Before(sess.EndTime) {
		return nil, ErrNotDue
	}

	switch sess.Kind {
	case store.KindDelivery:
		return m.completeDelivery(ctx, sess)
	case store.KindFishing:
		return m.completeFishing(ctx, sess)
	default:
		// A visitor still in_progress past its window was never answered.
		return m.expire(ctx, sess, store.SessionInProgress, nil)
	}
}

// ExpireIfOverdue applies the timeout default to an overdue waiting_choice
// session. Exactly-once: the guarded status update makes the second caller
// lose the race and re-read the stored result.
func (m *Machine) ExpireIfOverdue(ctx context.Context, ownerID, sessionID string) (*Result, error) {
	sess, err := m.ownedSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if res := storedResult(sess); res != nil {
		return res, nil
	}
	if sess.Status != store.SessionWaitingChoice {
		return nil, ErrWrongState
	}
	if sess.ChoiceTimeout != nil && m.now().Before(*sess.ChoiceTimeout) {
		return nil, ErrNotDue
	}
	return m.applyTimeout(ctx, sess)
}

// Observe is the read path with lazy expiry: an overdue waiting_choice
// session is caught up before being returned, but a due in_progress session
// is left alone until the player collects it.
func (m *Machine) Observe(ctx context.Context, ownerID, sessionID string) (*store.Session, error) {
	sess, err := m.ownedSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == store.SessionWaitingChoice && sess.ChoiceTimeout != nil && m.now().After(*sess.ChoiceTimeout) {
		if _, err := m.applyTimeout(ctx, sess); err != nil {
			return nil, err
		}
		return m.ownedSession(ctx, ownerID, sessionID)
	}
	return sess, nil
}

// applyTimeout resolves the frozen event's default choice. Sessions whose
// event carries no default expire empty-handed.
func (m *Machine) applyTimeout(ctx context.Context, sess *store.Session) (*Result, error) {
	def, err := decodeEvent(sess)
	if err != nil {
		return nil, err
	}
	if sess.TimeoutAction == "" {
		return m.expire(ctx, sess, store.SessionWaitingChoice, nil)
	}
	choice := def.Choice(sess.TimeoutAction)
	if choice == nil {
		log.Warn().Str("session_id", sess.ID).Str("timeout_action", sess.TimeoutAction).
			Msg("timeout action names no configured choice, expiring empty")
		return m.expire(ctx, sess, store.SessionWaitingChoice, nil)
	}
	return m.finishWithChoice(ctx, sess, choice, store.SessionCompleted, true)
}

// finishWithChoice rolls the choice's weighted outcomes and finishes the
// session: reward, unit release and the terminal status flip all in one
// transaction guarded on the current status.
func (m *Machine) finishWithChoice(ctx context.Context, sess *store.Session, choice *configstore.EventChoice, toStatus string, byTimeout bool) (*Result, error) {
	outcome, err := pickOutcome(choice, m.rng)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Outcome:   toStatus,
		ChoiceID:  choice.ID,
		ByTimeout: byTimeout,
		Message:   outcome.Message,
	}

	err = m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if outcome.Reward != nil {
			applied, err := m.mut.ApplyRewardTx(ctx, tx, sess.OwnerID, *outcome.Reward, "event_"+sess.EventID, sess.ID)
			if err != nil {
				return err
			}
			res.Rewards = append(res.Rewards, applied)
		}
		if err := m.releaseTx(ctx, tx, sess); err != nil {
			return err
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return m.store.FinishSessionTx(ctx, tx, sess.ID, sess.Status, toStatus, choice.ID, raw, m.now())
	})
	if err != nil {
		return m.afterFinishRace(ctx, sess, err)
	}
	return res, nil
}

// completeDelivery pays the plain no-event delivery.
func (m *Machine) completeDelivery(ctx context.Context, sess *store.Session) (*Result, error) {
	units, err := m.store.ListOwnedUnitsByIDs(ctx, sess.OwnerID, sess.UnitIDs)
	if err != nil {
		return nil, err
	}
	payout := DeliveryPayout(units)
	res := &Result{Outcome: store.SessionCompleted}

	err = m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if payout > 0 {
			applied, err := m.mut.ApplyRewardTx(ctx, tx, sess.OwnerID, reward.Gold(payout), "delivery_payout", sess.ID)
			if err != nil {
				return err
			}
			res.Rewards = append(res.Rewards, applied)
		}
		if err := m.releaseTx(ctx, tx, sess); err != nil {
			return err
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return m.store.FinishSessionTx(ctx, tx, sess.ID, store.SessionInProgress, store.SessionCompleted, "", raw, m.now())
	})
	if err != nil {
		return m.afterFinishRace(ctx, sess, err)
	}
	return res, nil
}

// completeFishing rolls the catch attempts against the fish table and grants
// the merged lines. The roll happens inside the same transaction discipline
// as every other completion; a lost status race means someone else already
// rolled, and their stored result wins.
func (m *Machine) completeFishing(ctx context.Context, sess *store.Session) (*Result, error) {
	table, err := m.cfg.FishTable(ctx)
	if err != nil {
		return nil, err
	}
	attempts := CatchAttempts(len(sess.UnitIDs), sess.EndTime.Sub(sess.StartTime), sess.LuckBonus)
	successProb := CatchSuccessProb(sess.LuckBonus)

	counts := map[string]int64{}
	for i := 0; i < attempts; i++ {
		if m.rng.Float64() >= successProb {
			continue
		}
		entry, err := reward.SelectWeighted(table, m.rng)
		if err != nil {
			return nil, err
		}
		counts[entry.ID]++
	}
	catches := mergeCatches(counts)
	res := &Result{Outcome: store.SessionCompleted, Catches: catches, Attempts: attempts}

	err = m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range catches {
			applied, err := m.mut.ApplyRewardTx(ctx, tx, sess.OwnerID, reward.Item(c.ItemID, c.Count), "fishing_catch", sess.ID)
			if err != nil {
				return err
			}
			res.Rewards = append(res.Rewards, applied)
		}
		if err := m.releaseTx(ctx, tx, sess); err != nil {
			return err
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return m.store.FinishSessionTx(ctx, tx, sess.ID, store.SessionInProgress, store.SessionCompleted, "", raw, m.now())
	})
	if err != nil {
		return m.afterFinishRace(ctx, sess, err)
	}
	return res, nil
}

// expire closes a session without rewards.
func (m *Machine) expire(ctx context.Context, sess *store.Session, fromStatus string, _ *Result) (*Result, error) {
	res := &Result{Outcome: store.SessionExpired, ByTimeout: true}
	err := m.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if err := m.releaseTx(ctx, tx, sess); err != nil {
			return err
		}
		raw, err := json.Marshal(res)
		if err != nil {
			return err
		}
		return m.store.FinishSessionTx(ctx, tx, sess.ID, fromStatus, store.SessionExpired, "", raw, m.now())
	})
	if err != nil {
		return m.afterFinishRace(ctx, sess, err)
	}
	return res, nil
}

// releaseTx returns the subject units to idle with the kind's fatigue and
// mood side effects. Visitors have no units.
func (m *Machine) releaseTx(ctx context.Context, tx *sql.Tx, sess *store.Session) error {
	if len(sess.UnitIDs) == 0 {
		return nil
	}
	switch sess.Kind {
	case store.KindDelivery:
		return m.mut.ReleaseUnitsTx(ctx, tx, sess.UnitIDs, store.UnitDelivery, deliveryFatigueDelta, 0)
	case store.KindFishing:
		return m.mut.ReleaseUnitsTx(ctx, tx, sess.UnitIDs, store.UnitFishing, fishingFatigueDelta, fishingMoodDelta)
	}
	return nil
}

// afterFinishRace handles losing the terminal-status race: when a concurrent
// caller finished the session first, the re-read stored result is the answer.
func (m *Machine) afterFinishRace(ctx context.Context, sess *store.Session, cause error) (*Result, error) {
	fresh, err := m.store.GetSession(ctx, sess.ID)
	if err != nil {
		return nil, cause
	}
	if res := storedResult(fresh); res != nil {
		return res, nil
	}
	return nil, cause
}

func (m *Machine) ownedSession(ctx context.Context, ownerID, sessionID string) (*store.Session, error) {
	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		// Not yours reads as not found; ids are not probeable.
		return nil, store.ErrNotFound
	}
	return sess, nil
}

// storedResult decodes the terminal result, nil for live sessions.
func storedResult(sess *store.Session) *Result {
	if sess.Status != store.SessionCompleted && sess.Status != store.SessionExpired {
		return nil
	}
	var res Result
	if len(sess.Result) > 0 && json.Unmarshal(sess.Result, &res) == nil {
		return &res
	}
	return &Result{Outcome: sess.Status}
}

// pickOutcome rolls a choice's weighted outcomes.
func pickOutcome(choice *configstore.EventChoice, rng reward.RandomSource) (*configstore.ChoiceOutcome, error) {
	if len(choice.Outcomes) == 0 {
		return nil, configstore.ErrConfigurationMissing
	}
	table := make(reward.Table, 0, len(choice.Outcomes))
	for i, o := range choice.Outcomes {
		table = append(table, reward.Entry{ID: strconv.Itoa(i), Weight: o.Weight})
	}
	picked, err := reward.SelectWeighted(table, rng)
	if err != nil {
		return nil, configstore.ErrConfigurationMissing
	}
	idx, err := strconv.Atoi(picked.ID)
	if err != nil || idx < 0 || idx >= len(choice.Outcomes) {
		return &choice.Outcomes[len(choice.Outcomes)-1], nil
	}
	return &choice.Outcomes[idx], nil
}

func mergeCatches(counts map[string]int64) []Catch {
	if len(counts) == 0 {
		return nil
	}
	out := make([]Catch, 0, len(counts))
	for id, n := range counts {
		out = append(out, Catch{ItemID: id, Count: n})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ItemID < out[b].ItemID })
	return out
}
