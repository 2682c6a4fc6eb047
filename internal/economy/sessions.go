package economy

import (
	"context"
	"errors"
	"fmt"

	"pawshop-economy/internal/session"
	"pawshop-economy/internal/store"
)

// StartSession validates and starts a delivery, fishing trip or visitor
// event. Unit availability problems surface as validation errors; losing
// the occupy race surfaces as a precondition failure.
func (s *Service) StartSession(ctx context.Context, accountID string, p session.StartParams) (*session.Started, error) {
	started, err := s.machine.Start(ctx, accountID, p)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return started, nil
}

// ResolveChoice answers a waiting_choice session. An answer that arrives
// after the choice window closed does not win a second chance: the timeout
// default is applied instead and its result returned, marked byTimeout.
func (s *Service) ResolveChoice(ctx context.Context, accountID, sessionID, choiceID string) (*session.Result, error) {
	if choiceID == "" {
		return nil, fmt.Errorf("%w: empty choice id", ErrValidation)
	}
	res, err := s.machine.ResolveChoice(ctx, accountID, sessionID, choiceID)
	if errors.Is(err, session.ErrChoiceWindowClosed) {
		res, err = s.machine.ExpireIfOverdue(ctx, accountID, sessionID)
	}
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return res, nil
}

// CompleteSession collects a due session, applying any overdue timeout
// default on the way. Retried completions get the stored result back.
func (s *Service) CompleteSession(ctx context.Context, accountID, sessionID string) (*session.Result, error) {
	res, err := s.machine.CompleteIfDue(ctx, accountID, sessionID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return res, nil
}

// GetSession is the read endpoint; overdue choice windows are lazily
// expired before the row is returned.
func (s *Service) GetSession(ctx context.Context, accountID, sessionID string) (*store.Session, error) {
	sess, err := s.machine.Observe(ctx, accountID, sessionID)
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return sess, nil
}

// mapSessionErr folds the machine's sentinels into the service taxonomy.
func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrUnknownKind),
		errors.Is(err, session.ErrNoUnits),
		errors.Is(err, session.ErrBadDuration),
		errors.Is(err, session.ErrUnknownChoice):
		return fmt.Errorf("%w: %s", ErrValidation, err)
	case errors.Is(err, session.ErrUnitsUnavailable),
		errors.Is(err, session.ErrUnitFatigued),
		errors.Is(err, session.ErrVisitorPending),
		errors.Is(err, session.ErrWrongState),
		errors.Is(err, session.ErrChoiceWindowClosed),
		errors.Is(err, session.ErrNotDue):
		return fmt.Errorf("%w: %s", ErrPreconditionFailed, err)
	default:
		return err
	}
}
