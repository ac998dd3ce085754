// Package reminder nudges the user when nothing has been journaled today.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"talkitout/internal/domain"
	"talkitout/internal/streak"
)

const DefaultMessage = "You haven't journaled today. Take a minute to talk it out."

// LatestEntry reports the most recent journal entry.
type LatestEntry interface {
	Latest() (domain.Entry, bool)
}

// Notifier delivers a reminder message to the views.
type Notifier func(message string)

// Scheduler runs the daily reminder check in UTC.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	entries LatestEntry
	notify  Notifier
	now     func() time.Time
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(spec string, entries LatestEntry, notify Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		spec:    strings.TrimSpace(spec),
		entries: entries,
		notify:  notify,
		now:     time.Now,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the check. An empty schedule disables the reminder.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.logger.Info("reminder disabled")
		return nil
	}
	if s.notify == nil {
		return fmt.Errorf("reminder notifier is not set")
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.Check(s.ctx) }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("reminder scheduled", slog.String("schedule", s.spec))
	return nil
}

// Check notifies when the latest entry is not from today (UTC). It reports
// whether a reminder was sent.
func (s *Scheduler) Check(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	today := streak.Day(s.now())
	if latest, ok := s.entries.Latest(); ok && streak.Day(latest.Date).Equal(today) {
		s.logger.Debug("reminder skipped, already journaled today")
		return false
	}
	s.logger.Info("sending journal reminder")
	s.notify(DefaultMessage)
	return true
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
}

// Running reports whether a schedule is registered.
func (s *Scheduler) Running() bool {
	return len(s.cron.Entries()) > 0
}
