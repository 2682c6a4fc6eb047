package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
	"pawshop-economy/internal/testutil"
)

// newTestMachine builds a machine over a throwaway schema with a seeded RNG
// and a clock the test moves by writing *now.
func newTestMachine(t *testing.T, seed uint64, now *time.Time) (*Machine, *store.Store, context.Context) {
	t.Helper()
	st, cleanup := testutil.OpenTestStore(t)
	t.Cleanup(cleanup)
	mut := mutator.New(st)
	nowFn := func() time.Time { return *now }
	cfg := configstore.New(st, nil, nowFn)
	return NewMachine(st, mut, cfg, reward.NewSeededRNG(seed), nowFn), st, context.Background()
}

func mustAccount(t *testing.T, st *store.Store, ctx context.Context, id string, gold int64) {
	t.Helper()
	if _, err := st.EnsureAccount(ctx, id, gold, 10, time.Now()); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
}

func mustUnit(t *testing.T, st *store.Store, ctx context.Context, ownerID, status string, fatigue, mood int) string {
	t.Helper()
	var id string
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		var ierr error
		id, ierr = st.InsertUnitTx(ctx, tx, store.WorkUnit{
			OwnerID: ownerID, BreedID: "cat_tabby", Rarity: "N",
			Status: status, Fatigue: fatigue, Mood: mood,
			Attributes: store.UnitAttributes{Cooking: 5, Speed: 5, Luck: 5},
		})
		return ierr
	})
	if err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	return id
}

func mustSession(t *testing.T, st *store.Store, ctx context.Context, sess store.Session) string {
	t.Helper()
	var id string
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		var ierr error
		id, ierr = st.InsertSessionTx(ctx, tx, sess)
		return ierr
	})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return id
}

// mustChoiceSession inserts a delivery session already waiting on the frozen
// event, the state ResolveChoice and the timeout paths operate on.
func mustChoiceSession(t *testing.T, st *store.Store, ctx context.Context, ownerID string, unitIDs []string, def *configstore.EventDef, start time.Time) string {
	t.Helper()
	sess := store.Session{
		OwnerID:   ownerID,
		Kind:      store.KindDelivery,
		UnitIDs:   unitIDs,
		Status:    store.SessionInProgress,
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
		LuckBonus: 1.0,
	}
	if err := attachEvent(&sess, def, start); err != nil {
		t.Fatalf("attach event: %v", err)
	}
	return mustSession(t, st, ctx, sess)
}

func testEvent(defaultChoice string) *configstore.EventDef {
	tip := reward.Gold(200)
	return &configstore.EventDef{
		EventID:          "stray_kitten",
		Name:             "Stray Kitten",
		Weight:           1,
		TimeLimitSeconds: 120,
		DefaultChoice:    defaultChoice,
		Choices: []configstore.EventChoice{
			{ID: "help", Label: "Stop and help", Outcomes: []configstore.ChoiceOutcome{
				{Weight: 1, Message: "The owner tips generously.", Reward: &tip},
			}},
			{ID: "pass_by", Label: "Keep moving", Outcomes: []configstore.ChoiceOutcome{
				{Weight: 1, Message: "The delivery continues."},
			}},
		},
	}
}

func sessionLedger(t *testing.T, st *store.Store, ctx context.Context, sessionID string) []store.LedgerEntry {
	t.Helper()
	entries, err := st.ListLedgerEntries(ctx, store.LedgerFilter{SessionID: sessionID}, 50, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return entries
}

func TestResolveChoiceFinishesOnce(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(time.Minute)
	m, st, ctx := newTestMachine(t, 1, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitDelivery, 0, 100)
	sessID := mustChoiceSession(t, st, ctx, "acct_1", []string{unitID}, testEvent("pass_by"), base)

	res, err := m.ResolveChoice(ctx, "acct_1", sessID, "help")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Outcome != store.SessionCompleted || res.ChoiceID != "help" || res.ByTimeout {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Rewards) != 1 || res.Rewards[0].BalanceAfter != 1200 {
		t.Fatalf("rewards = %+v", res.Rewards)
	}

	u, err := st.GetUnit(ctx, unitID)
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	if u.Status != store.UnitIdle || u.Fatigue != deliveryFatigueDelta {
		t.Fatalf("unit after release: status=%q fatigue=%d", u.Status, u.Fatigue)
	}

	// A retry with a different answer gets the stored result, not a re-roll.
	res2, err := m.ResolveChoice(ctx, "acct_1", sessID, "pass_by")
	if err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	if res2.ChoiceID != "help" || res2.Outcome != store.SessionCompleted {
		t.Fatalf("retry result = %+v", res2)
	}
	if n := len(sessionLedger(t, st, ctx, sessID)); n != 1 {
		t.Fatalf("ledger entries = %d, want 1", n)
	}
	acct, _ := st.GetAccount(ctx, "acct_1")
	if acct.Gold != 1200 {
		t.Fatalf("gold = %d, want 1200", acct.Gold)
	}
}

func TestCompleteIfDueAppliesTimeoutDefaultOnce(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(3 * time.Minute)
	m, st, ctx := newTestMachine(t, 2, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitDelivery, 0, 100)
	sessID := mustChoiceSession(t, st, ctx, "acct_1", []string{unitID}, testEvent("help"), base)

	res, err := m.CompleteIfDue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.ByTimeout || res.ChoiceID != "help" || res.Outcome != store.SessionCompleted {
		t.Fatalf("result = %+v", res)
	}

	res2, err := m.CompleteIfDue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if !res2.ByTimeout || res2.ChoiceID != "help" {
		t.Fatalf("second result = %+v", res2)
	}
	if n := len(sessionLedger(t, st, ctx, sessID)); n != 1 {
		t.Fatalf("ledger entries = %d, want 1 for one default application", n)
	}
	acct, _ := st.GetAccount(ctx, "acct_1")
	if acct.Gold != 1200 {
		t.Fatalf("gold = %d, want 1200", acct.Gold)
	}
}

func TestTimeoutWithoutDefaultExpires(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(3 * time.Minute)
	m, st, ctx := newTestMachine(t, 3, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitDelivery, 0, 100)
	sessID := mustChoiceSession(t, st, ctx, "acct_1", []string{unitID}, testEvent(""), base)

	res, err := m.CompleteIfDue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Outcome != store.SessionExpired || len(res.Rewards) != 0 {
		t.Fatalf("result = %+v", res)
	}

	sess, err := st.GetSession(ctx, sessID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != store.SessionExpired {
		t.Fatalf("status = %q, want expired", sess.Status)
	}
	u, _ := st.GetUnit(ctx, unitID)
	if u.Status != store.UnitIdle {
		t.Fatalf("unit status = %q, want idle", u.Status)
	}
	if n := len(sessionLedger(t, st, ctx, sessID)); n != 0 {
		t.Fatalf("expired session wrote %d ledger entries", n)
	}
}

func TestLateChoiceRejectedThenDefaultApplied(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(time.Minute)
	m, st, ctx := newTestMachine(t, 4, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitDelivery, 0, 100)
	sessID := mustChoiceSession(t, st, ctx, "acct_1", []string{unitID}, testEvent("help"), base)

	if _, err := m.ExpireIfOverdue(ctx, "acct_1", sessID); !errors.Is(err, ErrNotDue) {
		t.Fatalf("early expire err = %v, want ErrNotDue", err)
	}

	now = base.Add(3 * time.Minute)
	if _, err := m.ResolveChoice(ctx, "acct_1", sessID, "pass_by"); !errors.Is(err, ErrChoiceWindowClosed) {
		t.Fatalf("late choice err = %v, want ErrChoiceWindowClosed", err)
	}

	res, err := m.ExpireIfOverdue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !res.ByTimeout || res.ChoiceID != "help" {
		t.Fatalf("result = %+v", res)
	}

	res2, err := m.ResolveChoice(ctx, "acct_1", sessID, "pass_by")
	if err != nil {
		t.Fatalf("post-terminal resolve: %v", err)
	}
	if res2.ChoiceID != "help" {
		t.Fatalf("stored result = %+v", res2)
	}
}

func TestObserveCatchesUpOverdueChoice(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(3 * time.Minute)
	m, st, ctx := newTestMachine(t, 5, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitDelivery, 0, 100)
	sessID := mustChoiceSession(t, st, ctx, "acct_1", []string{unitID}, testEvent("help"), base)

	sess, err := m.Observe(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if sess.Status != store.SessionCompleted || sess.SelectedChoice != "help" {
		t.Fatalf("observed session: status=%q selected=%q", sess.Status, sess.SelectedChoice)
	}
}

func TestCompleteFishingRollsAndStoresCatches(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(31 * time.Minute)
	m, st, ctx := newTestMachine(t, 6, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitFishing, 30, 50)

	if _, err := st.PublishConfig(ctx, store.ConfigDocument{
		ConfigType:    configstore.TypeFishTable,
		Version:       "1.0.0",
		Data:          json.RawMessage(`[{"id":"fish_carp","weight":1,"payload":{"kind":"item","item_id":"fish_carp","amount":1}}]`),
		EffectiveFrom: base.Add(-time.Hour),
		IsActive:      true,
	}); err != nil {
		t.Fatalf("publish fish table: %v", err)
	}

	sessID := mustSession(t, st, ctx, store.Session{
		OwnerID:   "acct_1",
		Kind:      store.KindFishing,
		UnitIDs:   []string{unitID},
		Status:    store.SessionInProgress,
		StartTime: base,
		EndTime:   base.Add(30 * time.Minute),
		LuckBonus: 2.0,
	})

	res, err := m.CompleteIfDue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Outcome != store.SessionCompleted {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	// 1 unit, 3 ten-minute blocks, luck bonus 2.0.
	if res.Attempts != 6 {
		t.Fatalf("attempts = %d, want 6", res.Attempts)
	}
	if len(res.Catches) > 1 {
		t.Fatalf("single-fish table produced %d merged lines", len(res.Catches))
	}
	var caught int64
	if len(res.Catches) == 1 {
		if res.Catches[0].ItemID != "fish_carp" {
			t.Fatalf("catch = %+v", res.Catches[0])
		}
		caught = res.Catches[0].Count
	}
	if caught < 0 || caught > 6 {
		t.Fatalf("caught = %d out of range", caught)
	}

	acct, _ := st.GetAccount(ctx, "acct_1")
	if acct.Inventory["fish_carp"] != caught {
		t.Fatalf("inventory = %d, want %d", acct.Inventory["fish_carp"], caught)
	}
	if n := len(sessionLedger(t, st, ctx, sessID)); n != len(res.Catches) {
		t.Fatalf("ledger entries = %d, want %d", n, len(res.Catches))
	}

	u, _ := st.GetUnit(ctx, unitID)
	if u.Status != store.UnitIdle || u.Fatigue != 10 || u.Mood != 65 {
		t.Fatalf("unit after release: status=%q fatigue=%d mood=%d", u.Status, u.Fatigue, u.Mood)
	}

	// Replay returns the stored roll, never a fresh one.
	res2, err := m.CompleteIfDue(ctx, "acct_1", sessID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if res2.Attempts != res.Attempts || len(res2.Catches) != len(res.Catches) {
		t.Fatalf("replay = %+v, want %+v", res2, res)
	}
}

func TestStartRejectsUnitStillInOpenSession(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base
	m, st, ctx := newTestMachine(t, 7, &now)
	mustAccount(t, st, ctx, "acct_1", 1000)
	unitID := mustUnit(t, st, ctx, "acct_1", store.UnitIdle, 0, 100)

	// The unit row reads idle but an open session still lists it.
	mustSession(t, st, ctx, store.Session{
		OwnerID:   "acct_1",
		Kind:      store.KindDelivery,
		UnitIDs:   []string{unitID},
		Status:    store.SessionInProgress,
		StartTime: base.Add(-time.Minute),
		EndTime:   base.Add(5 * time.Minute),
		LuckBonus: 1.0,
	})

	_, err := m.Start(ctx, "acct_1", StartParams{Kind: store.KindDelivery, UnitIDs: []string{unitID}})
	if !errors.Is(err, ErrUnitsUnavailable) {
		t.Fatalf("start err = %v, want ErrUnitsUnavailable", err)
	}
}
