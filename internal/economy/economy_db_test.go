package economy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"pawshop-economy/internal/config"
	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"
	"pawshop-economy/internal/testutil"
)

// newDBService wires a full service over a throwaway schema with a seeded RNG
// and a clock the test moves by writing *now.
func newDBService(t *testing.T, now *time.Time) (*Service, *store.Store, context.Context) {
	t.Helper()
	st, cleanup := testutil.OpenTestStore(t)
	t.Cleanup(cleanup)
	mut := mutator.New(st)
	nowFn := func() time.Time { return *now }
	cfg := configstore.New(st, nil, nowFn)
	machine := session.NewMachine(st, mut, cfg, reward.NewSeededRNG(1), nowFn)
	conf := config.ServerConfig{
		StarterGold:      1000,
		StarterGems:      10,
		OfflineCapHours:  12,
		OfflineGoldCap:   100000,
		DailyAdSpinLimit: 3,
		PaidSpinGemCost:  50,
	}
	return NewService(st, mut, cfg, machine, reward.NewSeededRNG(1), nowFn, conf), st, context.Background()
}

func insertUnit(t *testing.T, st *store.Store, ctx context.Context, u store.WorkUnit) string {
	t.Helper()
	var id string
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		var ierr error
		id, ierr = st.InsertUnitTx(ctx, tx, u)
		return ierr
	})
	if err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	return id
}

func publishRates(t *testing.T, st *store.Store, ctx context.Context, from time.Time) {
	t.Helper()
	if _, err := st.PublishConfig(ctx, store.ConfigDocument{
		ConfigType: configstore.TypeEconomyRates,
		Version:    "1.0.0",
		Data: json.RawMessage(`{"baseGoldPerLevelPerSecond":0.2,` +
			`"cookingGoldPerPointPerSecond":0.05,"facilityGoldPerLevelPerSecond":0.1}`),
		EffectiveFrom: from,
		IsActive:      true,
	}); err != nil {
		t.Fatalf("publish rates: %v", err)
	}
}

func TestAssignUnitLifecycle(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	svc, st, ctx := newDBService(t, &now)
	if _, err := st.EnsureAccount(ctx, "acct_1", 1000, 10, now); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	unitID := insertUnit(t, st, ctx, store.WorkUnit{
		OwnerID: "acct_1", BreedID: "cat_tabby", Rarity: "N",
		Status: store.UnitIdle, Mood: 100,
		Attributes: store.UnitAttributes{Cooking: 4, Speed: 3, Luck: 3},
	})

	v, err := svc.AssignUnit(ctx, "acct_1", unitID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if v.Status != store.UnitWorking {
		t.Fatalf("status = %q, want working", v.Status)
	}

	if _, err := svc.AssignUnit(ctx, "acct_1", unitID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("double assign err = %v, want ErrPreconditionFailed", err)
	}

	v, err = svc.UnassignUnit(ctx, "acct_1", unitID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if v.Status != store.UnitIdle {
		t.Fatalf("status = %q, want idle", v.Status)
	}
	if _, err := svc.UnassignUnit(ctx, "acct_1", unitID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("double unassign err = %v, want ErrPreconditionFailed", err)
	}

	if _, err := svc.AssignUnit(ctx, "acct_1", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown unit err = %v, want ErrNotFound", err)
	}
	if _, err := svc.AssignUnit(ctx, "acct_other", unitID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign unit err = %v, want ErrNotFound", err)
	}
}

func TestAssignUnitRespectsFatigueCeiling(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	svc, st, ctx := newDBService(t, &now)
	if _, err := st.EnsureAccount(ctx, "acct_1", 1000, 10, now); err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	unitID := insertUnit(t, st, ctx, store.WorkUnit{
		OwnerID: "acct_1", BreedID: "cat_tabby", Rarity: "N",
		Status: store.UnitIdle, Fatigue: 81, Mood: 100,
	})
	if _, err := svc.AssignUnit(ctx, "acct_1", unitID); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("fatigued assign err = %v, want ErrPreconditionFailed", err)
	}
}

func TestLoginPaysWorkingUnitsOffline(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	svc, st, ctx := newDBService(t, &now)
	publishRates(t, st, ctx, now.Add(-time.Hour))

	first, err := svc.Login(ctx, "acct_1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if !first.FirstLogin || first.OfflineEarnings != 0 {
		t.Fatalf("first login = %+v", first)
	}

	unitID := insertUnit(t, st, ctx, store.WorkUnit{
		OwnerID: "acct_1", BreedID: "cat_tabby", Rarity: "N",
		Status: store.UnitIdle, Mood: 100,
		Attributes: store.UnitAttributes{Cooking: 4, Speed: 3, Luck: 3},
	})
	if _, err := svc.AssignUnit(ctx, "acct_1", unitID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	now = now.Add(2 * time.Hour)
	second, err := svc.Login(ctx, "acct_1")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	// 7200s at base 0.2 (shop level 1) plus worker 0.05*4 cooking.
	if second.OfflineEarnings != 2880 {
		t.Fatalf("offline earnings = %d, want 2880", second.OfflineEarnings)
	}
	if second.Account.Gold != 1000+2880 {
		t.Fatalf("gold = %d, want %d", second.Account.Gold, 1000+2880)
	}
	if second.Account.PendingOfflineGold != 2880 {
		t.Fatalf("pendingOfflineGold = %d", second.Account.PendingOfflineGold)
	}

	entries, err := st.ListLedgerEntries(ctx, store.LedgerFilter{AccountID: "acct_1"}, 50, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "offline_earnings" || entries[0].Amount != 2880 {
		t.Fatalf("ledger = %+v", entries)
	}
}

func TestLateChoiceAppliesTimeoutDefault(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Millisecond)
	now := base.Add(3 * time.Minute)
	svc, st, ctx := newDBService(t, &now)
	if _, err := st.EnsureAccount(ctx, "acct_1", 1000, 10, base); err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	tip := reward.Gold(200)
	def := configstore.EventDef{
		EventID:          "food_critic",
		Weight:           1,
		TimeLimitSeconds: 120,
		DefaultChoice:    "decline",
		Choices: []configstore.EventChoice{
			{ID: "serve", Outcomes: []configstore.ChoiceOutcome{{Weight: 1, Reward: &tip}}},
			{ID: "decline", Outcomes: []configstore.ChoiceOutcome{{Weight: 1, Message: "The critic leaves."}}},
		},
	}
	raw, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	timeout := base.Add(2 * time.Minute)
	var sessID string
	err = st.WithTx(ctx, func(tx *sql.Tx) error {
		var ierr error
		sessID, ierr = st.InsertSessionTx(ctx, tx, store.Session{
			OwnerID:       "acct_1",
			Kind:          store.KindVisitor,
			Status:        store.SessionWaitingChoice,
			StartTime:     base,
			EndTime:       timeout,
			LuckBonus:     1.0,
			EventID:       def.EventID,
			Choices:       raw,
			ChoiceTimeout: &timeout,
			TimeoutAction: def.DefaultChoice,
		})
		return ierr
	})
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	// The answer arrives after the window closed; the default wins instead.
	res, err := svc.ResolveChoice(ctx, "acct_1", sessID, "serve")
	if err != nil {
		t.Fatalf("late resolve: %v", err)
	}
	if !res.ByTimeout || res.ChoiceID != "decline" {
		t.Fatalf("result = %+v", res)
	}
	acct, _ := st.GetAccount(ctx, "acct_1")
	if acct.Gold != 1000 {
		t.Fatalf("gold = %d, the declined default must not pay", acct.Gold)
	}
}
