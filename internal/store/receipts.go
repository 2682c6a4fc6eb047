package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// InsertDrawReceiptTx claims an idempotency key inside the caller's tx.
// Returns false when the key already exists, in which case the stored
// response must be returned instead of re-rolling.
func (s *Store) InsertDrawReceiptTx(ctx context.Context, tx *sql.Tx, r DrawReceipt) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO draw_receipts (owner_id, request_key, operation, response)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (owner_id, request_key) DO NOTHING
	`, r.OwnerID, r.RequestKey, r.Operation, []byte(r.Response))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetDrawReceiptResponseTx fills in the stored response once the draw is
// final. Runs in the same tx that claimed the key.
func (s *Store) SetDrawReceiptResponseTx(ctx context.Context, tx *sql.Tx, ownerID, requestKey string, response json.RawMessage) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE draw_receipts SET response = $3 WHERE owner_id = $1 AND request_key = $2
	`, ownerID, requestKey, []byte(response))
	return err
}

func (s *Store) GetDrawReceipt(ctx context.Context, ownerID, requestKey string) (*DrawReceipt, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT owner_id, request_key, operation, response, created_at
		FROM draw_receipts WHERE owner_id = $1 AND request_key = $2
	`, ownerID, requestKey)
	var r DrawReceipt
	var resp []byte
	if err := row.Scan(&r.OwnerID, &r.RequestKey, &r.Operation, &resp, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Response = json.RawMessage(resp)
	return &r, nil
}
