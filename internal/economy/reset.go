package economy

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RunDailyReset resets every account's wheel counters for today. Safe to run
// twice: the wheel_day guard makes a repeat a no-op, and the lazy per-account
// reset on login/spin covers accounts the job missed.
func (s *Service) RunDailyReset(ctx context.Context) error {
	n, err := s.store.ResetAllWheelDays(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("daily wheel reset failed")
		return err
	}
	log.Info().Int64("accounts", n).Msg("daily wheel reset")
	return nil
}
