package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"telegram-reminder-bot/internal/messages"
	"telegram-reminder-bot/internal/metrics"
	"telegram-reminder-bot/internal/models"
)

// Store is the delivery side of storage.DB.
type Store interface {
	DueReminders(ctx context.Context, day, hm string) ([]models.Reminder, error)
	ClaimDelivery(ctx context.Context, id int64, slot string) (bool, error)
	ReleaseDelivery(ctx context.Context, id int64, slot, prev string) error
}

// Notifier pushes a text to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Scheduler struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	log      *zap.SugaredLogger

	cron gocron.Scheduler
}

// New creates a scheduler. clock, m and log may be nil.
func New(store Store, notifier Notifier, loc *time.Location, clock clockwork.Clock, m *metrics.Metrics, log *zap.SugaredLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{store: store, notifier: notifier, loc: loc, clock: clock, metrics: m, log: log}
}

// Start runs Tick at second zero of every minute until Shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(
		gocron.WithLocation(s.loc),
		gocron.WithClock(s.clock),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.CronJob("* * * * *", false),
		gocron.NewTask(func() { s.Tick(ctx) }),
		gocron.WithName("deliver-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cron.Shutdown()
		return fmt.Errorf("register delivery job: %w", err)
	}

	cron.Start()
	s.cron = cron
	s.log.Infow("scheduler started", "tz", s.loc.String())
	return nil
}

// Shutdown stops the cron loop and waits for a running tick.
func (s *Scheduler) Shutdown() error {
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

// Tick delivers every reminder due at the current minute. A reminder is
// claimed for the minute before it is sent, so overlapping ticks or a
// restart within the minute do not send it twice.
func (s *Scheduler) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("tick panicked", "panic", r)
		}
	}()

	now := s.clock.Now().In(s.loc)
	day, hm := now.Format("2006-01-02"), now.Format("15:04")
	slot := day + " " + hm

	due, err := s.store.DueReminders(ctx, day, hm)
	if err != nil {
		s.log.Errorw("load due reminders", "slot", slot, "err", err)
		return
	}

	for _, r := range due {
		claimed, err := s.store.ClaimDelivery(ctx, r.ID, slot)
		if err != nil {
			s.log.Errorw("claim delivery", "reminder_id", r.ID, "err", err)
			continue
		}
		if !claimed {
			continue
		}

		err = s.notifier.Send(ctx, r.ChatID, messages.Notification(r))
		s.metrics.Delivered(err)
		if err != nil {
			s.log.Warnw("reminder not delivered", "chat_id", r.ChatID, "reminder_id", r.ID, "err", err)
			if err := s.store.ReleaseDelivery(ctx, r.ID, slot, r.LastFired); err != nil {
				s.log.Errorw("release delivery", "reminder_id", r.ID, "err", err)
			}
			continue
		}
		s.log.Debugw("reminder delivered", "chat_id", r.ChatID, "reminder_id", r.ID, "kind", r.Kind)
	}
}
