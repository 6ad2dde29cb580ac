package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically removes expired verification codes. Verify already
// treats them as absent; this only keeps the table small.
type Sweeper struct {
	repo     CodeRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSweeper(repo CodeRepository, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Debug("removed expired verification codes", zap.Int64("count", removed))
	}
	return removed, nil
}

func (s *Sweeper) Start() {
	if s.interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logger.Warn("failed to sweep expired verification codes", zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}
