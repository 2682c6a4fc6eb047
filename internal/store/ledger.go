package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertLedgerEntryTx appends one immutable audit record. Always called in
// the same tx as the balance or inventory change it records.
func (s *Store) InsertLedgerEntryTx(ctx context.Context, tx *sql.Tx, e LedgerEntry) (string, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, direction, currency, item_id, amount, reason,
			related_session_id, balance_before, balance_after)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.AccountID, e.Direction, e.Currency, nullIfEmpty(e.ItemID), e.Amount, e.Reason,
		nullIfEmpty(e.RelatedSessionID), e.BalanceBefore, e.BalanceAfter)
	return e.ID, err
}

type LedgerFilter struct {
	AccountID string
	SessionID string
	Currency  string
}

func (s *Store) ListLedgerEntries(ctx context.Context, f LedgerFilter, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE 1=1"
	args := []any{}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		where += fmt.Sprintf(" AND account_id = $%d", len(args))
	}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
		where += fmt.Sprintf(" AND related_session_id = $%d", len(args))
	}
	if f.Currency != "" {
		args = append(args, f.Currency)
		where += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	args = append(args, limit, offset)
	q := `SELECT id, account_id, direction, currency, COALESCE(item_id, ''), amount, reason,
		COALESCE(related_session_id, ''), balance_before, balance_after, created_at
		FROM ledger_entries ` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Direction, &e.Currency, &e.ItemID, &e.Amount,
			&e.Reason, &e.RelatedSessionID, &e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
