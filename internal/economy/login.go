package economy

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pawshop-economy/internal/clock"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// AccountView is the client-facing account shape shared by login and the
// account read endpoint.
type AccountView struct {
	ID                 string           `json:"id"`
	Gold               int64            `json:"gold"`
	Gems               int64            `json:"gems"`
	Inventory          map[string]int64 `json:"inventory"`
	ShopLevel          int              `json:"shopLevel"`
	FacilityLevel      int              `json:"facilityLevel"`
	PendingOfflineGold int64            `json:"pendingOfflineGold"`
	FreeSpinAvailable  bool             `json:"freeSpinAvailable"`
	AdSpinsRemaining   int              `json:"adSpinsRemaining"`
	LastActiveAt       time.Time        `json:"lastActiveAt"`
}

type LoginResult struct {
	Account         AccountView `json:"account"`
	OfflineEarnings int64       `json:"offlineEarnings"`
	FirstLogin      bool        `json:"firstLogin"`
}

// Login bootstraps the account on first sight, pays out the clamped offline
// earnings and advances lastActiveAt, all in one transaction. The elapsed
// window is clamped before any math so clock skew and long absences can
// never owe or overpay. The transaction is anchored on the lastActiveAt
// value the earnings were computed from; a concurrent login that already
// consumed that window rolls this one back unpaid.
func (s *Service) Login(ctx context.Context, accountID string) (*LoginResult, error) {
	now := s.now()
	created, err := s.store.EnsureAccount(ctx, accountID, s.conf.StarterGold, s.conf.StarterGems, now)
	if err != nil {
		return nil, err
	}
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var earnings int64
	if !created {
		earnings, err = s.offlineEarnings(ctx, acct, now)
		if err != nil {
			return nil, err
		}
	}

	err = s.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if earnings > 0 {
			if _, err := s.mut.EarnTx(ctx, tx, accountID, "gold", earnings, "offline_earnings", ""); err != nil {
				return err
			}
		}
		if err := s.store.SetPendingOfflineGoldTx(ctx, tx, accountID, earnings); err != nil {
			return err
		}
		if err := s.store.ResetWheelDayTx(ctx, tx, accountID, now); err != nil {
			return err
		}
		return s.store.TouchLastActiveTx(ctx, tx, accountID, acct.LastActiveAt, now)
	})
	switch {
	case errors.Is(err, ErrPreconditionFailed):
		// A concurrent login consumed this offline window first; its payout
		// stands and this request adds nothing.
		earnings = 0
	case err != nil:
		return nil, err
	}

	acct, err = s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Str("account_id", accountID).Msg("account bootstrapped")
	}
	return &LoginResult{
		Account:         s.accountView(acct),
		OfflineEarnings: earnings,
		FirstLogin:      created,
	}, nil
}

// GetAccount is the read endpoint behind GET /api/account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*AccountView, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	v := s.accountView(acct)
	return &v, nil
}

// offlineEarnings computes the idle payout for the absence window: base rate
// from shop level, facility bonus from facility level, and the per-second
// production of every unit that was left working, stepped up by rarity.
func (s *Service) offlineEarnings(ctx context.Context, acct *store.Account, now time.Time) (int64, error) {
	rates, err := s.cfg.EconomyRates(ctx)
	if err != nil {
		return 0, err
	}
	seconds := clock.ElapsedSeconds(acct.LastActiveAt, now, time.Duration(s.conf.OfflineCapHours)*time.Hour)
	if seconds == 0 {
		return 0, nil
	}

	working, err := s.store.ListOwnedUnits(ctx, acct.ID, store.UnitWorking)
	if err != nil {
		return 0, err
	}
	workers := make([]clock.Worker, 0, len(working))
	for _, u := range working {
		workers = append(workers, clock.Worker{
			ProductionPerSecond: rates.CookingGoldPerPointPerSecond * float64(u.Attributes.Cooking),
			RarityMultiplier:    reward.Rarity(u.Rarity).Multiplier(),
		})
	}

	base := rates.BaseGoldPerLevelPerSecond * float64(acct.ShopLevel)
	facility := rates.FacilityGoldPerLevelPerSecond * float64(acct.FacilityLevel)
	return clock.IdleEarnings(base, clock.WorkerBonusRate(workers), facility, seconds, s.conf.OfflineGoldCap), nil
}

func (s *Service) accountView(acct *store.Account) AccountView {
	day := dayOf(s.now())
	freeAvailable := !acct.FreeSpinUsed
	adRemaining := s.conf.DailyAdSpinLimit - acct.AdSpins
	if acct.WheelDay != day {
		// Counters not yet lazily reset for today still read as fresh.
		freeAvailable = true
		adRemaining = s.conf.DailyAdSpinLimit
	}
	if adRemaining < 0 {
		adRemaining = 0
	}
	return AccountView{
		ID:                 acct.ID,
		Gold:               acct.Gold,
		Gems:               acct.Gems,
		Inventory:          acct.Inventory,
		ShopLevel:          acct.ShopLevel,
		FacilityLevel:      acct.FacilityLevel,
		PendingOfflineGold: acct.PendingOfflineGold,
		FreeSpinAvailable:  freeAvailable,
		AdSpinsRemaining:   adRemaining,
		LastActiveAt:       acct.LastActiveAt,
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
