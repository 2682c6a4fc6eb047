// Package configstore serves versioned game configuration through the
// resilient cache. Documents are published as new versions, never mutated,
// so a cached copy is safe for its whole TTL.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pawshop-economy/internal/cache"
	"pawshop-economy/internal/store"

	"github.com/rs/zerolog/log"
)

// Config types the economy depends on.
const (
	TypeBreeds         = "animal_breeds"
	TypeDeliveryEvents = "delivery_events"
	TypeFishTable      = "fish_table"
	TypeWheelRewards   = "wheel_rewards"
	TypeVisitors       = "special_visitors"
	TypeEconomyRates   = "economy_rates"
)

// ErrConfigurationMissing means an expected active document is absent. Fatal
// for the request; economy-critical tables are never silently defaulted.
var ErrConfigurationMissing = errors.New("configuration_missing")

const cacheTTL = 5 * time.Minute

// Source is the persistence slice configstore needs.
type Source interface {
	GetActiveConfig(ctx context.Context, configType string, at time.Time) (*store.ConfigDocument, error)
}

type Store struct {
	source Source
	cache  *cache.ResilientCache
	now    func() time.Time
}

func New(source Source, c *cache.ResilientCache, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{source: source, cache: c, now: now}
}

// GetActive returns the document in effect for configType right now,
// preferring the cache and falling back to the source. A cache outage is
// invisible here: the read degrades to the source query.
func (s *Store) GetActive(ctx context.Context, configType string) (*store.ConfigDocument, error) {
	key := "gameConfig:" + configType
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var doc store.ConfigDocument
			if err := json.Unmarshal(raw, &doc); err == nil && s.stillEffective(&doc) {
				return &doc, nil
			}
		}
	}

	doc, err := s.source.GetActiveConfig(ctx, configType, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Str("config_type", configType).Msg("active config document missing")
			return nil, ErrConfigurationMissing
		}
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(doc); err == nil {
			s.cache.Set(ctx, key, raw, cacheTTL)
		}
	}
	return doc, nil
}

// stillEffective re-checks the effective window on cached copies so a
// document whose window closed mid-TTL is not served stale.
func (s *Store) stillEffective(doc *store.ConfigDocument) bool {
	now := s.now()
	if !doc.IsActive || doc.EffectiveFrom.After(now) {
		return false
	}
	return doc.EffectiveTo == nil || doc.EffectiveTo.After(now)
}

func decodeInto(doc *store.ConfigDocument, out any) error {
	if doc == nil || len(doc.Data) == 0 {
		return ErrConfigurationMissing
	}
	if err := json.Unmarshal(doc.Data, out); err != nil {
		log.Error().Err(err).Str("config_type", doc.ConfigType).Str("version", doc.Version).
			Msg("config document not decodable")
		return ErrConfigurationMissing
	}
	return nil
}
