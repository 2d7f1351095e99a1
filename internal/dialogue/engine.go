// Package dialogue runs the per-chat conversation that turns free text into
// saved reminders, asking for whatever the first message left out.
//
// A chat is either idle (no draft stored) or waiting for one answer:
// a time, a date or the frequency. Every state change is written to the
// store before the reply is returned, so the reply never promises a save
// that did not happen.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"telegram-reminder-bot/internal/extractor"
	"telegram-reminder-bot/internal/messages"
	"telegram-reminder-bot/internal/metrics"
	"telegram-reminder-bot/internal/models"
	"telegram-reminder-bot/internal/utils"
)

// maxRetries unreadable answers in a row abandon the dialogue.
const maxRetries = 2

// Store is the part of storage.DB the dialogue needs.
type Store interface {
	EnsureUser(ctx context.Context, chatID int64) error
	ClearUser(ctx context.Context, chatID int64) error
	ListReminders(ctx context.Context, chatID int64) (models.UserReminders, error)
	DeleteDaily(ctx context.Context, chatID int64, hm string) (bool, error)
	DeleteOneOff(ctx context.Context, chatID int64, date, hm string) (bool, error)
	GetDraft(ctx context.Context, chatID int64) (*models.Draft, error)
	SaveDraft(ctx context.Context, d models.Draft) error
	ClearDraft(ctx context.Context, chatID int64) error
	CommitDraft(ctx context.Context, r models.Reminder) (models.Reminder, error)
}

// Extractor reads reminder slots out of text.
type Extractor interface {
	Extract(ctx context.Context, text string) extractor.Result
	Answer(text string) extractor.Result
	Now() time.Time
}

type Engine struct {
	store   Store
	ext     Extractor
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	locks utils.KeyedMutex
}

// New creates an engine. m and log may be nil.
func New(store Store, ext Extractor, m *metrics.Metrics, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{store: store, ext: ext, metrics: m, log: log}
}

// Handle processes one inbound message and returns the reply. The reply is
// always set, also when err is not nil; err is for the caller to log.
func (e *Engine) Handle(ctx context.Context, chatID int64, text string) (string, error) {
	unlock := e.locks.Lock(chatID)
	defer unlock()

	text = strings.TrimSpace(text)

	if err := e.store.EnsureUser(ctx, chatID); err != nil {
		return messages.StoreFailed, fmt.Errorf("ensure user %d: %w", chatID, err)
	}
	draft, err := e.store.GetDraft(ctx, chatID)
	if err != nil {
		return messages.StoreFailed, fmt.Errorf("load draft %d: %w", chatID, err)
	}

	phase := models.PhaseIdle
	if draft != nil {
		phase = draft.Phase
	}
	e.log.Debugw("message", "chat_id", chatID, "phase", phase)

	if isCancel(text) {
		if phase == models.PhaseIdle {
			return messages.NothingToCancel, nil
		}
		if err := e.store.ClearDraft(ctx, chatID); err != nil {
			return messages.StoreFailed, fmt.Errorf("cancel draft %d: %w", chatID, err)
		}
		return messages.Cancelled, nil
	}

	switch phase {
	case models.PhaseIdle:
		return e.idle(ctx, chatID, text)
	case models.PhaseAwaitingTime:
		return e.awaitingTime(ctx, *draft, text)
	case models.PhaseAwaitingDate:
		return e.awaitingDate(ctx, *draft, text)
	case models.PhaseAwaitingFrequency:
		return e.awaitingFrequency(ctx, *draft, text)
	}
	return messages.StoreFailed, fmt.Errorf("chat %d: unknown phase %d", chatID, phase)
}

func (e *Engine) idle(ctx context.Context, chatID int64, text string) (string, error) {
	if reply, ok, err := e.command(ctx, chatID, text); ok {
		return reply, err
	}

	res := e.ext.Extract(ctx, text)
	e.metrics.Extracted(res.Source.String())
	if res.Note == "" {
		return messages.NotUnderstood, nil
	}

	d := models.Draft{
		ChatID:     chatID,
		Note:       res.Note,
		Time:       res.Time,
		Date:       res.Date,
		Recurrence: res.Recurrence,
	}
	// a time found by the rules without any cue means every day
	if d.Recurrence == models.RecurrenceUnknown && res.Source == extractor.SourceRules && d.Time != "" {
		d.Recurrence = models.RecurrenceDaily
	}
	return e.advance(ctx, d)
}

func (e *Engine) awaitingTime(ctx context.Context, d models.Draft, text string) (string, error) {
	res := e.ext.Answer(text)
	if res.Time == "" {
		return e.retry(ctx, d, messages.AskTimeAgain)
	}
	d.Time = res.Time
	if res.Recurrence != models.RecurrenceUnknown {
		d.Recurrence = res.Recurrence
	}
	if res.Date != "" {
		d.Date = res.Date
	}
	if d.Recurrence == models.RecurrenceDaily {
		d.Date = ""
	}
	return e.advance(ctx, d)
}

func (e *Engine) awaitingDate(ctx context.Context, d models.Draft, text string) (string, error) {
	res := e.ext.Answer(text)
	if res.Date == "" {
		return e.retry(ctx, d, messages.AskDateAgain)
	}
	d.Date = res.Date
	if res.Time != "" {
		d.Time = res.Time
	}
	return e.advance(ctx, d)
}

func (e *Engine) awaitingFrequency(ctx context.Context, d models.Draft, text string) (string, error) {
	res := e.ext.Answer(text)
	if extractor.IsOneOffReply(text) || res.Date != "" {
		d.Recurrence = models.RecurrenceOneOff
		switch {
		case res.Date != "":
			d.Date = res.Date
		case d.Date == "":
			d.Date = e.ext.Now().Format("2006-01-02")
		}
	} else {
		d.Recurrence = models.RecurrenceDaily
		d.Date = ""
	}
	return e.advance(ctx, d)
}

// advance moves d to the next missing slot, or commits it when complete.
func (e *Engine) advance(ctx context.Context, d models.Draft) (string, error) {
	var question string
	switch {
	case d.Time == "":
		d.Phase, question = models.PhaseAwaitingTime, messages.AskTime
	case d.Recurrence == models.RecurrenceOneOff && d.Date == "":
		d.Phase, question = models.PhaseAwaitingDate, messages.AskDate
	case d.Recurrence == models.RecurrenceUnknown:
		d.Phase, question = models.PhaseAwaitingFrequency, messages.AskFrequency
	default:
		return e.commit(ctx, d)
	}

	d.RetryCount = 0
	if err := e.store.SaveDraft(ctx, d); err != nil {
		return messages.StoreFailed, fmt.Errorf("save draft %d: %w", d.ChatID, err)
	}
	return question, nil
}

func (e *Engine) retry(ctx context.Context, d models.Draft, again string) (string, error) {
	d.RetryCount++
	if d.RetryCount >= maxRetries {
		if err := e.store.ClearDraft(ctx, d.ChatID); err != nil {
			return messages.StoreFailed, fmt.Errorf("abandon draft %d: %w", d.ChatID, err)
		}
		e.metrics.DialogueAbandoned()
		e.log.Infow("dialogue abandoned", "chat_id", d.ChatID, "phase", d.Phase)
		return messages.Abandoned, nil
	}
	if err := e.store.SaveDraft(ctx, d); err != nil {
		return messages.StoreFailed, fmt.Errorf("save draft %d: %w", d.ChatID, err)
	}
	return again, nil
}

func (e *Engine) commit(ctx context.Context, d models.Draft) (string, error) {
	r := d.Reminder()
	if !r.Valid() {
		return messages.StoreFailed, fmt.Errorf("chat %d: incomplete reminder %+v", d.ChatID, r)
	}
	saved, err := e.store.CommitDraft(ctx, r)
	if err != nil {
		return messages.StoreFailed, fmt.Errorf("commit reminder %d: %w", d.ChatID, err)
	}
	e.metrics.ReminderCommitted(saved.Kind)
	e.log.Infow("reminder saved", "chat_id", saved.ChatID, "reminder_id", saved.ID, "kind", saved.Kind)
	return messages.Confirm(saved), nil
}
