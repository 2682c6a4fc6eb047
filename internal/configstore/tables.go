package configstore

import (
	"context"

	"pawshop-economy/internal/reward"
	"pawshop-economy/internal/store"
)

// Breed is one recruitable species variant from the animal_breeds table.
type Breed struct {
	BreedID        string               `json:"breedId"`
	Species        string               `json:"species"`
	Name           string               `json:"name"`
	Rarity         reward.Rarity        `json:"rarity"`
	Weight         float64              `json:"weight"`
	BaseAttributes store.UnitAttributes `json:"baseAttributes"`
}

// ChoiceOutcome is one weighted result of an event choice.
type ChoiceOutcome struct {
	Weight  float64        `json:"weight"`
	Message string         `json:"message"`
	Reward  *reward.Reward `json:"reward,omitempty"`
}

type EventChoice struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Outcomes []ChoiceOutcome `json:"outcomes"`
}

// EventDef is one weighted interactive event (delivery interruption or
// special visitor). DefaultChoice is the timeoutAction applied when the
// player never responds; it must name one of Choices.
type EventDef struct {
	EventID          string        `json:"eventId"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Weight           float64       `json:"weight"`
	TimeLimitSeconds int           `json:"timeLimitSeconds"`
	DefaultChoice    string        `json:"defaultChoice"`
	Choices          []EventChoice `json:"choices"`
}

// Choice returns the choice with the given id, or nil.
func (e EventDef) Choice(id string) *EventChoice {
	for i := range e.Choices {
		if e.Choices[i].ID == id {
			return &e.Choices[i]
		}
	}
	return nil
}

// EconomyRates are the tunable idle-production knobs. Economy-critical:
// missing document fails the login rather than paying out a guess.
type EconomyRates struct {
	BaseGoldPerLevelPerSecond     float64 `json:"baseGoldPerLevelPerSecond"`
	CookingGoldPerPointPerSecond  float64 `json:"cookingGoldPerPointPerSecond"`
	FacilityGoldPerLevelPerSecond float64 `json:"facilityGoldPerLevelPerSecond"`
}

// Breeds returns the weighted recruit table plus a lookup by breed id.
func (s *Store) Breeds(ctx context.Context) (reward.Table, map[string]Breed, error) {
	doc, err := s.GetActive(ctx, TypeBreeds)
	if err != nil {
		return nil, nil, err
	}
	var breeds []Breed
	if err := decodeInto(doc, &breeds); err != nil {
		return nil, nil, err
	}
	if len(breeds) == 0 {
		return nil, nil, ErrConfigurationMissing
	}
	table := make(reward.Table, 0, len(breeds))
	byID := make(map[string]Breed, len(breeds))
	for _, b := range breeds {
		table = append(table, reward.Entry{ID: b.BreedID, Weight: b.Weight, Rarity: b.Rarity})
		byID[b.BreedID] = b
	}
	return table, byID, nil
}

func (s *Store) DeliveryEvents(ctx context.Context) ([]EventDef, error) {
	return s.events(ctx, TypeDeliveryEvents)
}

func (s *Store) VisitorEvents(ctx context.Context) ([]EventDef, error) {
	return s.events(ctx, TypeVisitors)
}

func (s *Store) events(ctx context.Context, configType string) ([]EventDef, error) {
	doc, err := s.GetActive(ctx, configType)
	if err != nil {
		return nil, err
	}
	var events []EventDef
	if err := decodeInto(doc, &events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrConfigurationMissing
	}
	return events, nil
}

// FishTable returns the weighted catch table; entry payloads are item rewards.
func (s *Store) FishTable(ctx context.Context) (reward.Table, error) {
	return s.rewardTable(ctx, TypeFishTable)
}

// WheelTable returns the daily wheel's weighted reward table.
func (s *Store) WheelTable(ctx context.Context) (reward.Table, error) {
	return s.rewardTable(ctx, TypeWheelRewards)
}

func (s *Store) rewardTable(ctx context.Context, configType string) (reward.Table, error) {
	doc, err := s.GetActive(ctx, configType)
	if err != nil {
		return nil, err
	}
	var table reward.Table
	if err := decodeInto(doc, &table); err != nil {
		return nil, err
	}
	if total, err := table.TotalWeight(); err != nil || total <= 0 {
		return nil, ErrConfigurationMissing
	}
	return table, nil
}

func (s *Store) EconomyRates(ctx context.Context) (EconomyRates, error) {
	doc, err := s.GetActive(ctx, TypeEconomyRates)
	if err != nil {
		return EconomyRates{}, err
	}
	var rates EconomyRates
	if err := decodeInto(doc, &rates); err != nil {
		return EconomyRates{}, err
	}
	return rates, nil
}
