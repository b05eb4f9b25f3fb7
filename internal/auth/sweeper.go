package auth

import (
	"context"
	"time"

	"github.com/userapi/backend/internal/logger"
)

// DefaultSweepInterval is used when NewSweeper is given a non-positive interval.
const DefaultSweepInterval = time.Hour

// Sweeper periodically purges expired refresh records from stores that do not
// expire them natively.
type Sweeper struct {
	purger   ExpiredPurger
	interval time.Duration
	onSwept  func(n int64)
	log      *logger.Logger
}

func NewSweeper(purger ExpiredPurger, interval time.Duration, onSwept func(n int64), log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Default()
	}
	if onSwept == nil {
		onSwept = func(int64) {}
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		purger:   purger,
		interval: interval,
		onSwept:  onSwept,
		log:      log.WithComponent("token-sweeper"),
	}
}

// Run sweeps until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge and returns the number of removed records.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.purger.DeleteExpired(ctx)
	if err != nil {
		s.log.Error(ctx, "sweep failed", err)
		return 0
	}
	if n > 0 {
		s.log.Info(ctx, "expired refresh records purged", map[string]interface{}{"count": n})
	}
	s.onSwept(n)
	return n
}
