package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetActiveConfig returns the single config document in effect for the type
// at the given instant: isActive, effectiveFrom <= at, and effectiveTo either
// open or in the future. Pure function of `at` given the stored documents.
func (s *Store) GetActiveConfig(ctx context.Context, configType string, at time.Time) (*ConfigDocument, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, config_type, version, data, effective_from, effective_to, is_active, created_at
		FROM game_configs
		WHERE config_type = $1 AND is_active
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to > $2)
		ORDER BY effective_from DESC
		LIMIT 1
	`, configType, at)
	return scanConfig(row)
}

func scanConfig(row interface{ Scan(...any) error }) (*ConfigDocument, error) {
	var c ConfigDocument
	var data []byte
	var effectiveTo sql.NullTime
	if err := row.Scan(&c.ID, &c.ConfigType, &c.Version, &data, &c.EffectiveFrom,
		&effectiveTo, &c.IsActive, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Data = data
	if effectiveTo.Valid {
		t := effectiveTo.Time
		c.EffectiveTo = &t
	}
	return &c, nil
}

// PublishConfig inserts a new config version and deactivates prior actives
// for the type in the same tx, so readers never observe two active documents
// or a partially written one. Config is never mutated in place.
func (s *Store) PublishConfig(ctx context.Context, doc ConfigDocument) (string, error) {
	if doc.ID == "" {
		doc.ID = NewID()
	}
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE game_configs SET is_active = false WHERE config_type = $1 AND is_active
		`, doc.ConfigType); err != nil {
			return err
		}
		var effectiveTo any
		if doc.EffectiveTo != nil {
			effectiveTo = *doc.EffectiveTo
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_configs (id, config_type, version, data, effective_from, effective_to, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, doc.ID, doc.ConfigType, doc.Version, []byte(doc.Data), doc.EffectiveFrom, effectiveTo, doc.IsActive)
		return err
	})
	return doc.ID, err
}

// CountConfigs is used by startup seeding to avoid re-seeding a live store.
func (s *Store) CountConfigs(ctx context.Context, configType string) (int, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM game_configs WHERE config_type = $1`, configType)
	var c int
	err := row.Scan(&c)
	return c, err
}
