package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const accountColumns = `id, gold, gems, inventory, shop_level, facility_level, pending_offline_gold,
	free_spin_used, ad_spins, paid_spins, wheel_day, active, last_active_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var a Account
	var inv []byte
	if err := row.Scan(&a.ID, &a.Gold, &a.Gems, &inv, &a.ShopLevel, &a.FacilityLevel,
		&a.PendingOfflineGold, &a.FreeSpinUsed, &a.AdSpins, &a.PaidSpins, &a.WheelDay,
		&a.Active, &a.LastActiveAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Inventory = map[string]int64{}
	if len(inv) > 0 {
		if err := json.Unmarshal(inv, &a.Inventory); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *Store) GetAccountTx(ctx context.Context, tx *sql.Tx, id string) (*Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

// EnsureAccount creates the account on first login with starter balances.
// Returns true when a new row was created.
func (s *Store) EnsureAccount(ctx context.Context, id string, starterGold, starterGems int64, now time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO accounts (id, gold, gems, inventory, wheel_day, last_active_at)
		VALUES ($1, $2, $3, '{}'::jsonb, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, id, starterGold, starterGems, dayOf(now), now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TouchLastActiveTx advances lastActiveAt from the value the caller observed
// when it computed the offline window. Guarded on that observed value: of two
// logins racing over the same window, the loser matches zero rows, gets
// ErrNotMatched and its payout rolls back with the tx. The <= guard keeps a
// delayed request from re-opening a window already paid out.
func (s *Store) TouchLastActiveTx(ctx context.Context, tx *sql.Tx, id string, observed, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET last_active_at = $3, updated_at = now()
		WHERE id = $1 AND last_active_at = $2 AND last_active_at <= $3
	`, id, observed, now)
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

// AdjustBalanceTx applies a guarded currency delta. The precondition
// "balance stays non-negative" is checked at write time; zero rows matched
// surfaces ErrNotMatched and the surrounding tx must roll back. Returns the
// balance before and after for the ledger entry written alongside.
func (s *Store) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, id, currency string, delta int64) (before, after int64, err error) {
	var col string
	switch currency {
	case "gold":
		col = "gold"
	case "gems":
		col = "gems"
	default:
		return 0, 0, errors.New("unknown_currency")
	}
	row := tx.QueryRowContext(ctx, `
		UPDATE accounts SET `+col+` = `+col+` + $2, updated_at = now()
		WHERE id = $1 AND `+col+` + $2 >= 0 AND active
		RETURNING `+col,
		id, delta)
	if err := row.Scan(&after); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotMatched
		}
		return 0, 0, err
	}
	return after - delta, after, nil
}

// AdjustInventoryTx applies a guarded item-count delta inside the jsonb
// inventory map, keeping counts non-negative.
func (s *Store) AdjustInventoryTx(ctx context.Context, tx *sql.Tx, id, itemID string, delta int64) (before, after int64, err error) {
	row := tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET inventory = jsonb_set(inventory, ARRAY[$2]::text[],
			to_jsonb(COALESCE((inventory->>$2)::bigint, 0) + $3)),
		    updated_at = now()
		WHERE id = $1 AND COALESCE((inventory->>$2)::bigint, 0) + $3 >= 0 AND active
		RETURNING (inventory->>$2)::bigint
	`, id, itemID, delta)
	if err := row.Scan(&after); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotMatched
		}
		return 0, 0, err
	}
	return after - delta, after, nil
}

// SetPendingOfflineGoldTx caches the computed offline payout on the account.
func (s *Store) SetPendingOfflineGoldTx(ctx context.Context, tx *sql.Tx, id string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET pending_offline_gold = $2, updated_at = now() WHERE id = $1
	`, id, amount)
	return err
}

// ResetWheelDayTx resets the daily spin counters when the stored day differs
// from today. Idempotent: running it twice on the same day matches zero rows
// the second time, which is not an error here.
func (s *Store) ResetWheelDayTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET free_spin_used = false, ad_spins = 0, paid_spins = 0, wheel_day = $2, updated_at = now()
		WHERE id = $1 AND wheel_day <> $2
	`, id, dayOf(now))
	return err
}

// ResetAllWheelDays is the scheduled daily reset. Safe to run twice: the
// wheel_day guard makes the second run a no-op.
func (s *Store) ResetAllWheelDays(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE accounts
		SET free_spin_used = false, ad_spins = 0, paid_spins = 0, wheel_day = $1, updated_at = now()
		WHERE wheel_day <> $1 AND active
	`, dayOf(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSpinUsedTx consumes one spin of the given type under its daily limit.
func (s *Store) MarkSpinUsedTx(ctx context.Context, tx *sql.Tx, id, spinType string, adLimit int) error {
	var res sql.Result
	var err error
	switch spinType {
	case "free":
		res, err = tx.ExecContext(ctx, `
			UPDATE accounts SET free_spin_used = true, updated_at = now()
			WHERE id = $1 AND NOT free_spin_used
		`, id)
	case "ad":
		res, err = tx.ExecContext(ctx, `
			UPDATE accounts SET ad_spins = ad_spins + 1, updated_at = now()
			WHERE id = $1 AND ad_spins < $2
		`, id, adLimit)
	case "paid":
		res, err = tx.ExecContext(ctx, `
			UPDATE accounts SET paid_spins = paid_spins + 1, updated_at = now()
			WHERE id = $1
		`, id)
	default:
		return errors.New("unknown_spin_type")
	}
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

// DeactivateAccount soft-deletes; accounts are never hard-deleted.
func (s *Store) DeactivateAccount(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE accounts SET active = false, updated_at = now() WHERE id = $1`, id)
	return err
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
