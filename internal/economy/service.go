// Package economy orchestrates the player-facing flows (login with offline
// earnings, recruitment, unit staffing, the daily wheel and the session
// endpoints) over the reward, session, mutator and configstore layers.
package economy

import (
	"time"

	"pawshop-economy/internal/config"
	"pawshop-economy/internal/configstore"
	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"
)

type Service struct {
	store   *store.Store
	mut     *mutator.Mutator
	cfg     *configstore.Store
	machine *session.Machine
	rng     reward.RandomSource
	now     func() time.Time
	conf    config.ServerConfig
}

func NewService(st *store.Store, mut *mutator.Mutator, cfg *configstore.Store, machine *session.Machine, rng reward.RandomSource, now func() time.Time, conf config.ServerConfig) *Service {
	if rng == nil {
		rng = reward.DefaultRNG()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, mut: mut, cfg: cfg, machine: machine, rng: rng, now: now, conf: conf}
}
