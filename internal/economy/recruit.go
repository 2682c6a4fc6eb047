package economy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// Recruit box types and the pull counts they map to.
const (
	BoxSingle  = "single"
	BoxTenPull = "ten_pull"

	tenPullGuaranteeTier = reward.RaritySR

	// gems buy a better table: the boost shifts weight from N/R into SR+.
	gemRateBoost = 1.3
)

// The pricing matrix. Ten pulls cost nine singles' worth.
var recruitPrices = map[string]map[string]int64{
	BoxSingle:  {"gold": 500, "gems": 5},
	BoxTenPull: {"gold": 4500, "gems": 45},
}

type RecruitRequest struct {
	BoxType    string `json:"boxType"`
	Currency   string `json:"currency"`
	RequestKey string `json:"requestKey,omitempty"`
}

// DrawnUnit is one recruited animal, already persisted.
type DrawnUnit struct {
	UnitID     string               `json:"unitId"`
	BreedID    string               `json:"breedId"`
	Species    string               `json:"species"`
	Name       string               `json:"name"`
	Rarity     reward.Rarity        `json:"rarity"`
	Attributes store.UnitAttributes `json:"attributes"`
}

type RecruitResult struct {
	Units              []DrawnUnit    `json:"units"`
	RarityStats        map[string]int `json:"rarityStats"`
	GuaranteeTriggered bool           `json:"guaranteeTriggered"`
	Price              int64          `json:"price"`
	Currency           string         `json:"currency"`
	BalanceAfter       int64          `json:"balanceAfter"`
}

// Recruit runs the gacha draw: price check, weighted batch draw with the
// ten-pull guarantee, unit creation and the spend all in one transaction.
// A request key makes the whole call idempotent; the replayed response is
// the stored one, never a re-roll.
func (s *Service) Recruit(ctx context.Context, accountID string, req RecruitRequest) (*RecruitResult, error) {
	price, count, err := recruitPrice(req.BoxType, req.Currency)
	if err != nil {
		return nil, err
	}
	if req.RequestKey != "" {
		if stored, err := s.storedRecruit(ctx, accountID, req.RequestKey); err != nil {
			return nil, err
		} else if stored != nil {
			return stored, nil
		}
	}

	table, byID, err := s.cfg.Breeds(ctx)
	if err != nil {
		return nil, err
	}
	if req.Currency == "gems" {
		table = reward.ApplyRateBoost(table, gemRateBoost)
	}
	var guarantee *reward.Guarantee
	if req.BoxType == BoxTenPull {
		guarantee = &reward.Guarantee{MinRarity: tenPullGuaranteeTier}
	}
	batch, err := reward.DrawBatch(table, count, guarantee, s.rng)
	if err != nil {
		return nil, err
	}

	res := &RecruitResult{
		RarityStats:        rarityStats(batch.Entries),
		GuaranteeTriggered: batch.GuaranteeTriggered,
		Price:              price,
		Currency:           req.Currency,
	}

	err = s.mut.WithTx(ctx, func(tx *sql.Tx) error {
		if req.RequestKey != "" {
			claimed, err := s.store.InsertDrawReceiptTx(ctx, tx, store.DrawReceipt{
				OwnerID:    accountID,
				RequestKey: req.RequestKey,
				Operation:  "recruit",
			})
			if err != nil {
				return err
			}
			if !claimed {
				return errReplayReceipt
			}
		}
		after, err := s.mut.SpendTx(ctx, tx, accountID, req.Currency, price, "recruit_"+req.BoxType, "")
		if err != nil {
			return err
		}
		res.BalanceAfter = after

		for _, e := range batch.Entries {
			breed, ok := byID[e.ID]
			if !ok {
				return ErrConfigurationMissing
			}
			unitID, err := s.store.InsertUnitTx(ctx, tx, store.WorkUnit{
				OwnerID:    accountID,
				BreedID:    breed.BreedID,
				Name:       breed.Name,
				Rarity:     string(breed.Rarity),
				Status:     store.UnitIdle,
				Attributes: breed.BaseAttributes,
				Mood:       100,
			})
			if err != nil {
				return err
			}
			res.Units = append(res.Units, DrawnUnit{
				UnitID:     unitID,
				BreedID:    breed.BreedID,
				Species:    breed.Species,
				Name:       breed.Name,
				Rarity:     breed.Rarity,
				Attributes: breed.BaseAttributes,
			})
			if breed.Rarity == reward.RarityUSR {
				if err := s.auditUSRTx(ctx, tx, accountID, unitID, breed.BreedID); err != nil {
					return err
				}
			}
		}
		if req.RequestKey != "" {
			return s.updateReceiptResponseTx(ctx, tx, accountID, req.RequestKey, res)
		}
		return nil
	})
	if errors.Is(err, errReplayReceipt) {
		// Lost the idempotency race; the winner's stored response answers.
		if stored, rerr := s.storedRecruit(ctx, accountID, req.RequestKey); rerr == nil && stored != nil {
			return stored, nil
		}
		return nil, ErrPreconditionFailed
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

var errReplayReceipt = errors.New("replay_receipt")

// auditUSRTx leaves a permanent trail for top-tier pulls: a zero-balance
// audit ledger line plus a structured log record.
func (s *Service) auditUSRTx(ctx context.Context, tx *sql.Tx, accountID, unitID, breedID string) error {
	log.Info().Str("account_id", accountID).Str("unit_id", unitID).Str("breed_id", breedID).
		Msg("USR recruited")
	_, err := s.store.InsertLedgerEntryTx(ctx, tx, store.LedgerEntry{
		AccountID: accountID,
		Direction: store.DirectionEarn,
		Currency:  "item",
		ItemID:    breedID,
		Amount:    1,
		Reason:    "usr_recruit_audit",
	})
	return err
}

func (s *Service) storedRecruit(ctx context.Context, accountID, requestKey string) (*RecruitResult, error) {
	receipt, err := s.store.GetDrawReceipt(ctx, accountID, requestKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(receipt.Response) == 0 {
		// Claimed but never finalized: the claiming tx rolled back after the
		// insert became visible, or is still in flight.
		return nil, ErrPreconditionFailed
	}
	var res RecruitResult
	if err := json.Unmarshal(receipt.Response, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) updateReceiptResponseTx(ctx context.Context, tx *sql.Tx, accountID, requestKey string, res *RecruitResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.store.SetDrawReceiptResponseTx(ctx, tx, accountID, requestKey, raw)
}

func recruitPrice(boxType, currency string) (price int64, count int, err error) {
	byCurrency, ok := recruitPrices[boxType]
	if !ok {
		return 0, 0, fmt.Errorf("%w: box type %q", ErrValidation, boxType)
	}
	price, ok = byCurrency[currency]
	if !ok {
		return 0, 0, fmt.Errorf("%w: currency %q", ErrValidation, currency)
	}
	count = 1
	if boxType == BoxTenPull {
		count = 10
	}
	return price, count, nil
}

func rarityStats(entries []reward.Entry) map[string]int {
	stats := make(map[string]int, len(entries))
	for _, e := range entries {
		stats[string(e.Rarity)]++
	}
	return stats
}
