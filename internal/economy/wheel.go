package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pawshop-economy/internal/mutator"
	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// Wheel spin types. One free spin a day, ad spins up to the daily cap, paid
// spins cost gems and are unlimited.
const (
	SpinFree = "free"
	SpinAd   = "ad"
	SpinPaid = "paid"
)

type SpinResult struct {
	SpinType          string          `json:"spinType"`
	Reward            mutator.Applied `json:"reward"`
	FreeSpinAvailable bool            `json:"freeSpinAvailable"`
	AdSpinsRemaining  int             `json:"adSpinsRemaining"`
}

// SpinWheel consumes one spin of the given type and applies one weighted
// reward. The counter consumption, the optional gem cost and the payout are
// one transaction, so a failed payout refunds the spin implicitly.
func (s *Service) SpinWheel(ctx context.Context, accountID, spinType string) (*SpinResult, error) {
	switch spinType {
	case SpinFree, SpinAd, SpinPaid:
	default:
		return nil, fmt.Errorf("%w: spin type %q", ErrValidation, spinType)
	}

	table, err := s.cfg.WheelTable(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := reward.SelectWeighted(table, s.rng)
	if err != nil {
		return nil, err
	}
	rw, err := reward.DecodeReward(entry.Payload)
	if err != nil {
		return nil, ErrConfigurationMissing
	}

	now := s.now()
	res := &SpinResult{SpinType: spinType}
	err = s.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.store.ResetWheelDayTx(ctx, tx, accountID, now); err != nil {
			return err
		}
		if err := s.store.MarkSpinUsedTx(ctx, tx, accountID, spinType, s.conf.DailyAdSpinLimit); err != nil {
			if errors.Is(err, store.ErrNotMatched) {
				return ErrResourceExhausted
			}
			return err
		}
		if spinType == SpinPaid {
			if _, err := s.mut.SpendTx(ctx, tx, accountID, "gems", s.conf.PaidSpinGemCost, "wheel_paid_spin", ""); err != nil {
				return err
			}
		}
		applied, err := s.mut.ApplyRewardTx(ctx, tx, accountID, rw, "wheel_"+spinType, "")
		if err != nil {
			return err
		}
		res.Reward = applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := s.accountView(acct)
	res.FreeSpinAvailable = view.FreeSpinAvailable
	res.AdSpinsRemaining = view.AdSpinsRemaining
	return res, nil
}
