package mutator

import (
	"context"
	"database/sql"
	"errors"

	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// Applied reports the effect of one reward after clamping, with the balance
// it left behind (currency rewards only).
type Applied struct {
	Reward       reward.Reward `json:"reward"`
	BalanceAfter int64         `json:"balance_after"`
}

// SpendTx deducts amount of currency, guarded on sufficient balance, and
// appends the spend ledger entry. ErrPreconditionFailed when the balance
// moved below the cost between read and write.
func (m *Mutator) SpendTx(ctx context.Context, tx *sql.Tx, accountID, currency string, amount int64, reason, relatedSessionID string) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("spend_amount_not_positive")
	}
	before, after, err := m.store.AdjustBalanceTx(ctx, tx, accountID, currency, -amount)
	if err != nil {
		return 0, wrap(err)
	}
	_, err = m.store.InsertLedgerEntryTx(ctx, tx, store.LedgerEntry{
		AccountID:        accountID,
		Direction:        store.DirectionSpend,
		Currency:         currency,
		Amount:           amount,
		Reason:           reason,
		RelatedSessionID: relatedSessionID,
		BalanceBefore:    before,
		BalanceAfter:     after,
	})
	return after, err
}

// EarnTx credits amount of currency and appends the earn ledger entry.
func (m *Mutator) EarnTx(ctx context.Context, tx *sql.Tx, accountID, currency string, amount int64, reason, relatedSessionID string) (int64, error) {
	if amount <= 0 {
		return 0, errors.New("earn_amount_not_positive")
	}
	before, after, err := m.store.AdjustBalanceTx(ctx, tx, accountID, currency, amount)
	if err != nil {
		return 0, wrap(err)
	}
	_, err = m.store.InsertLedgerEntryTx(ctx, tx, store.LedgerEntry{
		AccountID:        accountID,
		Direction:        store.DirectionEarn,
		Currency:         currency,
		Amount:           amount,
		Reason:           reason,
		RelatedSessionID: relatedSessionID,
		BalanceBefore:    before,
		BalanceAfter:     after,
	})
	return after, err
}

// GrantItemTx adds count of an item to the inventory map with its ledger
// entry (currency "item", balances are the item count).
func (m *Mutator) GrantItemTx(ctx context.Context, tx *sql.Tx, accountID, itemID string, count int64, reason, relatedSessionID string) error {
	if count <= 0 {
		return errors.New("item_count_not_positive")
	}
	before, after, err := m.store.AdjustInventoryTx(ctx, tx, accountID, itemID, count)
	if err != nil {
		return wrap(err)
	}
	_, err = m.store.InsertLedgerEntryTx(ctx, tx, store.LedgerEntry{
		AccountID:        accountID,
		Direction:        store.DirectionEarn,
		Currency:         "item",
		ItemID:           itemID,
		Amount:           count,
		Reason:           reason,
		RelatedSessionID: relatedSessionID,
		BalanceBefore:    before,
		BalanceAfter:     after,
	})
	return err
}

// ConsumeItemTx removes count of an item, guarded on the count staying
// non-negative (bait at fishing start).
func (m *Mutator) ConsumeItemTx(ctx context.Context, tx *sql.Tx, accountID, itemID string, count int64, reason, relatedSessionID string) error {
	if count <= 0 {
		return errors.New("item_count_not_positive")
	}
	before, after, err := m.store.AdjustInventoryTx(ctx, tx, accountID, itemID, -count)
	if err != nil {
		return wrap(err)
	}
	_, err = m.store.InsertLedgerEntryTx(ctx, tx, store.LedgerEntry{
		AccountID:        accountID,
		Direction:        store.DirectionSpend,
		Currency:         "item",
		ItemID:           itemID,
		Amount:           count,
		Reason:           reason,
		RelatedSessionID: relatedSessionID,
		BalanceBefore:    before,
		BalanceAfter:     after,
	})
	return err
}

// ApplyRewardTx applies the closed reward variant in one place. Negative
// gold (an event penalty) is clamped so the balance never goes below zero;
// the clamped amount is what the ledger records. A reward clamped to zero
// writes no ledger entry.
func (m *Mutator) ApplyRewardTx(ctx context.Context, tx *sql.Tx, accountID string, rw reward.Reward, reason, relatedSessionID string) (Applied, error) {
	if err := rw.Validate(); err != nil {
		return Applied{}, err
	}
	switch rw.Kind {
	case reward.KindGold:
		amount := rw.Amount
		if amount < 0 {
			acct, err := m.store.GetAccountTx(ctx, tx, accountID)
			if err != nil {
				return Applied{}, wrap(err)
			}
			if -amount > acct.Gold {
				amount = -acct.Gold
			}
			if amount == 0 {
				return Applied{Reward: reward.Gold(0), BalanceAfter: acct.Gold}, nil
			}
			after, err := m.SpendTx(ctx, tx, accountID, "gold", -amount, reason, relatedSessionID)
			if err != nil {
				return Applied{}, err
			}
			return Applied{Reward: reward.Gold(amount), BalanceAfter: after}, nil
		}
		if amount == 0 {
			return Applied{Reward: rw}, nil
		}
		after, err := m.EarnTx(ctx, tx, accountID, "gold", amount, reason, relatedSessionID)
		if err != nil {
			return Applied{}, err
		}
		return Applied{Reward: rw, BalanceAfter: after}, nil
	case reward.KindGems:
		if rw.Amount == 0 {
			return Applied{Reward: rw}, nil
		}
		after, err := m.EarnTx(ctx, tx, accountID, "gems", rw.Amount, reason, relatedSessionID)
		if err != nil {
			return Applied{}, err
		}
		return Applied{Reward: rw, BalanceAfter: after}, nil
	case reward.KindItem:
		if err := m.GrantItemTx(ctx, tx, accountID, rw.ItemID, rw.Amount, reason, relatedSessionID); err != nil {
			return Applied{}, err
		}
		return Applied{Reward: rw}, nil
	default:
		return Applied{}, reward.ErrInvalidReward
	}
}
