package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/robfig/cron/v3"
)

// Sweeper periodically deletes sessions that have been idle for longer than a limit.
type Sweeper struct {
	manager  *Manager
	idle     time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewSweeper creates a sweeper that runs on the given cron schedule
// (standard five-field syntax or descriptors such as "@every 1m").
func NewSweeper(manager *Manager, idle time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		manager:  manager,
		idle:     idle,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "session.sweeper"),
		now:      time.Now,
	}
}

// Start schedules sweeping until ctx is done or Stop is called.
// It does nothing when the schedule is empty or idle expiry is disabled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.idle <= 0 {
		s.logger.Info("idle session expiry disabled")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("session sweeper started", "schedule", s.schedule, "idle_timeout", s.idle)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	deleted, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "err", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("expired idle sessions", "deleted_count", deleted)
	}
}

// Sweep deletes every session whose last update is older than the idle limit.
// Each candidate is re-checked under its lock so a concurrent turn is never cut off.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.manager.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.idle)
	deleted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}
		err := s.manager.WithLock(ctx, id, func(ctx context.Context) error {
			sess, err := s.manager.store.Load(ctx, id)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if sess.UpdatedAt.After(cutoff) {
				return nil
			}
			if err := s.manager.store.Delete(ctx, id); err != nil {
				return err
			}
			deleted++
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to expire session", "session_id", id, "err", err)
		}
	}
	return deleted, nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("session sweeper stopped")
	}
}

// NextRun returns the next scheduled sweep, or nil when not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
