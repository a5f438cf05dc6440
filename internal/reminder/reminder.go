// Package reminder periodically reports gifticons that are about to expire.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zombor/giftguard/internal/gifticon"
)

// DefaultSchedule runs the check every morning at nine.
const DefaultSchedule = "0 9 * * *"

// Lister returns the gifticons expiring within the given number of days.
// *gifticon.Service satisfies it.
type Lister interface {
	ListExpiring(days int) ([]*gifticon.Gifticon, error)
}

// Notifier delivers one reminder.
type Notifier interface {
	Notify(ctx context.Context, g *gifticon.Gifticon, daysLeft int) error
}

// LogNotifier writes reminders to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the reminder
func (n LogNotifier) Notify(ctx context.Context, g *gifticon.Gifticon, daysLeft int) error {
	n.Logger.InfoContext(ctx, "Gifticon expiring soon",
		slog.String("id", g.ID),
		slog.String("item", g.ItemName),
		slog.String("merchant", g.Merchant),
		slog.String("expiry", g.ExpiryDate),
		slog.Int("days_left", daysLeft),
	)
	return nil
}

// Scheduler runs the expiry check on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	within   int
	lister   Lister
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler that reminds about gifticons expiring
// within the given number of days. An empty schedule means DefaultSchedule.
func NewScheduler(schedule string, within int, lister Lister, notifier Notifier, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		within:   within,
		lister:   lister,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the check and starts the scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Check(context.Background()) }); err != nil {
		return fmt.Errorf("scheduling reminder %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("reminder scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("within_days", s.within),
	)
	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// check has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("reminder scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a check in the background.
func (s *Scheduler) RunNow() {
	go s.Check(context.Background())
}

// Check notifies about every gifticon expiring within the window and returns
// how many reminders were delivered. A failed notification does not stop the
// others.
func (s *Scheduler) Check(ctx context.Context) int {
	gifticons, err := s.lister.ListExpiring(s.within)
	if err != nil {
		s.logger.Error("failed to list expiring gifticons", slog.Any("error", err))
		return 0
	}

	now := s.now()
	sent := 0
	for _, g := range gifticons {
		if err := s.notifier.Notify(ctx, g, g.DaysLeft(now)); err != nil {
			s.logger.Warn("failed to send reminder",
				slog.String("id", g.ID),
				slog.Any("error", err),
			)
			continue
		}
		sent++
	}

	s.logger.Info("expiry check completed",
		slog.Int("expiring", len(gifticons)),
		slog.Int("reminded", sent),
	)
	return sent
}
