// Package maintenance runs periodic housekeeping: expired sessions and
// stale read notifications are purged on a cron schedule.
package maintenance

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"relato/config"
	"relato/core/store"
	"relato/core/utils"
)

type Sweeper struct {
	cfg           config.RetentionConfig
	sessions      store.SessionsStore
	notifications store.NotificationsStore
	logger        *utils.Logger

	mu      sync.Mutex
	runner  *cron.Cron
	running bool
}

func NewSweeper(cfg config.RetentionConfig, sessions store.SessionsStore,
	notifications store.NotificationsStore, logger *utils.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, sessions: sessions, notifications: notifications, logger: logger}
}

func (s *Sweeper) StartWithContext(ctx context.Context) {
	if s == nil || !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	schedule := s.cfg.Schedule
	if schedule == "" {
		schedule = "@every 10m"
	}
	runner := cron.New()
	if _, err := runner.AddFunc(schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Errorf("maintenance: sweep failed: %v", err)
		}
	}); err != nil {
		s.logger.Errorf("maintenance: bad schedule %q: %v", schedule, err)
		return
	}
	runner.Start()
	s.runner = runner
	s.running = true
	s.logger.Printf("maintenance: sweeper started, schedule %s", schedule)
}

func (s *Sweeper) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	runner := s.runner
	s.runner = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning || runner == nil {
		return nil
	}
	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep. The scheduler calls it on the configured
// cadence; tests call it directly.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := utils.NowUTC()
	removed, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Debugf("maintenance: removed %d expired sessions", removed)
	}
	if s.cfg.NotificationMaxAge > 0 {
		cutoff := now.Add(-s.cfg.NotificationMaxAge)
		purged, err := s.notifications.DeleteReadOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		if purged > 0 {
			s.logger.Debugf("maintenance: purged %d read notifications", purged)
		}
	}
	return nil
}
