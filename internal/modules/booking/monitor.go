// README: Background ticker reporting requests that have waited too long for offers.
package booking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"homefix/internal/metrics"
)

// CountStale returns how many bookings created before cutoff are still waiting for offers.
func (s *Service) CountStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.List(ctx, Filter{
		Statuses:      []Status{StatusRequested, StatusOffersSent},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

// RunStaleMonitor reports stale requests every tick. It never changes booking state.
func (s *Service) RunStaleMonitor(ctx context.Context, tick, staleAfter time.Duration) {
	if tick <= 0 || staleAfter <= 0 {
		return
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CountStale(ctx, s.now().Add(-staleAfter))
			if err != nil {
				s.log.WithError(err).Warn("stale monitor: list bookings")
				continue
			}
			metrics.SetStaleRequests(n)
			if n > 0 {
				s.log.WithFields(logrus.Fields{
					"stale":       n,
					"stale_after": staleAfter.String(),
				}).Info("bookings still waiting for offers")
			}
		}
	}
}
