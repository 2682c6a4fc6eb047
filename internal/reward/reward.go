package reward

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags the closed reward variant. Every randomized system resolves to
// one of these three shapes; applying them to an account lives in one place
// (the mutator), not in per-call-site switches.
type Kind string

const (
	KindGold Kind = "gold"
	KindGems Kind = "gems"
	KindItem Kind = "item"
)

var ErrInvalidReward = errors.New("invalid_reward")

// Reward is the tagged variant Gold(amount) | Gems(amount) | Item(id, amount).
// Amount may be negative for gold (event penalties); gems and items may not.
type Reward struct {
	Kind   Kind   `json:"kind"`
	Amount int64  `json:"amount"`
	ItemID string `json:"item_id,omitempty"`
}

func Gold(amount int64) Reward { return Reward{Kind: KindGold, Amount: amount} }
func Gems(amount int64) Reward { return Reward{Kind: KindGems, Amount: amount} }
func Item(id string, count int64) Reward {
	return Reward{Kind: KindItem, ItemID: id, Amount: count}
}

// Validate rejects malformed variants before they reach the mutator.
func (r Reward) Validate() error {
	switch r.Kind {
	case KindGold:
		return nil
	case KindGems:
		if r.Amount < 0 {
			return fmt.Errorf("%w: negative gems", ErrInvalidReward)
		}
		return nil
	case KindItem:
		if r.ItemID == "" {
			return fmt.Errorf("%w: item without id", ErrInvalidReward)
		}
		if r.Amount <= 0 {
			return fmt.Errorf("%w: non-positive item count", ErrInvalidReward)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidReward, r.Kind)
	}
}

// DecodeReward parses an entry payload into the closed variant.
func DecodeReward(raw json.RawMessage) (Reward, error) {
	if len(raw) == 0 {
		return Reward{}, ErrInvalidReward
	}
	var r Reward
	if err := json.Unmarshal(raw, &r); err != nil {
		return Reward{}, fmt.Errorf("%w: %s", ErrInvalidReward, "payload not decodable")
	}
	if err := r.Validate(); err != nil {
		return Reward{}, err
	}
	return r, nil
}
