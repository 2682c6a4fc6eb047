package store

import (
	"database/sql"
	"testing"
)

func TestLedgerInsertAndFilter(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()
	mustCreateAccount(t, st, ctx, "acct_1", 1000, 0)
	mustCreateAccount(t, st, ctx, "acct_2", 1000, 0)

	entries := []LedgerEntry{
		{AccountID: "acct_1", Direction: DirectionEarn, Currency: "gold", Amount: 300,
			Reason: "delivery_payout", RelatedSessionID: "sess_1", BalanceBefore: 1000, BalanceAfter: 1300},
		{AccountID: "acct_1", Direction: DirectionSpend, Currency: "gems", Amount: 5,
			Reason: "recruit_single", BalanceBefore: 10, BalanceAfter: 5},
		{AccountID: "acct_1", Direction: DirectionEarn, Currency: "item", ItemID: "fish_carp", Amount: 2,
			Reason: "fishing_catch", RelatedSessionID: "sess_2", BalanceBefore: 0, BalanceAfter: 2},
		{AccountID: "acct_2", Direction: DirectionEarn, Currency: "gold", Amount: 100,
			Reason: "wheel_free", BalanceBefore: 1000, BalanceAfter: 1100},
	}
	err := st.WithTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			if _, err := st.InsertLedgerEntryTx(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert entries: %v", err)
	}

	byAccount, err := st.ListLedgerEntries(ctx, LedgerFilter{AccountID: "acct_1"}, 50, 0)
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(byAccount) != 3 {
		t.Fatalf("len(byAccount) = %d, want 3", len(byAccount))
	}

	bySession, err := st.ListLedgerEntries(ctx, LedgerFilter{SessionID: "sess_1"}, 50, 0)
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(bySession) != 1 || bySession[0].Reason != "delivery_payout" {
		t.Fatalf("bySession = %+v", bySession)
	}

	items, err := st.ListLedgerEntries(ctx, LedgerFilter{AccountID: "acct_1", Currency: "item"}, 50, 0)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != "fish_carp" || items[0].BalanceAfter != 2 {
		t.Fatalf("items = %+v", items)
	}

	limited, err := st.ListLedgerEntries(ctx, LedgerFilter{AccountID: "acct_1"}, 2, 0)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("len(limited) = %d, want 2", len(limited))
	}
}
