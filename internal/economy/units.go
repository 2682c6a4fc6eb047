package economy

import (
	"context"
	"database/sql"

	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"
)

// UnitView is the client-facing unit shape.
type UnitView struct {
	ID         string               `json:"id"`
	BreedID    string               `json:"breedId"`
	Name       string               `json:"name"`
	Rarity     string               `json:"rarity"`
	Status     string               `json:"status"`
	Attributes store.UnitAttributes `json:"attributes"`
	Fatigue    int                  `json:"fatigue"`
	Mood       int                  `json:"mood"`
}

// ListUnits returns the owner's full roster.
func (s *Service) ListUnits(ctx context.Context, accountID string) ([]UnitView, error) {
	units, err := s.store.ListOwnedUnits(ctx, accountID, "")
	if err != nil {
		return nil, err
	}
	out := make([]UnitView, 0, len(units))
	for i := range units {
		out = append(out, unitView(&units[i]))
	}
	return out, nil
}

// AssignUnit staffs an idle unit at a shop post. Working units are what the
// offline earnings pay for, so the transition is guarded the same way session
// starts are: still idle at write time and under the fatigue ceiling.
func (s *Service) AssignUnit(ctx context.Context, accountID, unitID string) (*UnitView, error) {
	if err := s.ownedUnit(ctx, accountID, unitID); err != nil {
		return nil, err
	}
	err := s.mut.WithTx(ctx, func(tx *sql.Tx) error {
		return s.mut.OccupyUnitsTx(ctx, tx, accountID, []string{unitID}, store.UnitWorking, session.FatigueCeiling)
	})
	if err != nil {
		return nil, err
	}
	return s.unitViewOf(ctx, unitID)
}

// UnassignUnit vacates a working unit back to idle. No gauge side effects;
// standing at a post is not tiring the way deliveries are.
func (s *Service) UnassignUnit(ctx context.Context, accountID, unitID string) (*UnitView, error) {
	if err := s.ownedUnit(ctx, accountID, unitID); err != nil {
		return nil, err
	}
	err := s.mut.WithTx(ctx, func(tx *sql.Tx) error {
		return s.mut.ReleaseUnitsTx(ctx, tx, []string{unitID}, store.UnitWorking, 0, 0)
	})
	if err != nil {
		return nil, err
	}
	return s.unitViewOf(ctx, unitID)
}

func (s *Service) ownedUnit(ctx context.Context, accountID, unitID string) error {
	u, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if u.OwnerID != accountID {
		// Not yours reads as not found; ids are not probeable.
		return store.ErrNotFound
	}
	return nil
}

func (s *Service) unitViewOf(ctx context.Context, unitID string) (*UnitView, error) {
	u, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	v := unitView(u)
	return &v, nil
}

func unitView(u *store.WorkUnit) UnitView {
	return UnitView{
		ID:         u.ID,
		BreedID:    u.BreedID,
		Name:       u.Name,
		Rarity:     u.Rarity,
		Status:     u.Status,
		Attributes: u.Attributes,
		Fatigue:    u.Fatigue,
		Mood:       u.Mood,
	}
}
