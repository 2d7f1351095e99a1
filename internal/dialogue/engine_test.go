package dialogue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telegram-reminder-bot/internal/extractor"
	"telegram-reminder-bot/internal/messages"
	"telegram-reminder-bot/internal/models"
	"telegram-reminder-bot/internal/storage"
)

const chat int64 = 42

// Saturday
var testNow = time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC)

type env struct {
	t      *testing.T
	db     *storage.DB
	engine *Engine
}

func newEnv(t *testing.T, interp extractor.Interpreter) *env {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ext := extractor.New(extractor.Config{
		Location:    time.UTC,
		Interpreter: interp,
		Clock:       clockwork.NewFakeClockAt(testNow),
	})
	return &env{t: t, db: db, engine: New(db, ext, nil, zaptest.NewLogger(t).Sugar())}
}

func (e *env) say(text string) string {
	e.t.Helper()
	reply, err := e.engine.Handle(context.Background(), chat, text)
	require.NoError(e.t, err)
	return reply
}

func (e *env) draft() *models.Draft {
	e.t.Helper()
	d, err := e.db.GetDraft(context.Background(), chat)
	require.NoError(e.t, err)
	return d
}

func (e *env) list() models.UserReminders {
	e.t.Helper()
	ur, err := e.db.ListReminders(context.Background(), chat)
	require.NoError(e.t, err)
	return ur
}

func TestOneShotDaily(t *testing.T) {
	e := newEnv(t, nil)

	reply := e.say("take blood-pressure pill at 9")
	assert.Contains(t, reply, "09:00")
	assert.Contains(t, reply, "take blood-pressure pill")
	assert.Nil(t, e.draft())

	ur := e.list()
	require.Len(t, ur.Daily, 1)
	assert.Equal(t, "09:00", ur.Daily[0].Time)
	assert.Equal(t, "take blood-pressure pill", ur.Daily[0].Note)
	assert.Empty(t, ur.OneOff)
}

func TestOneShotAppointment(t *testing.T) {
	e := newEnv(t, nil)

	e.say("doctor appointment on April 18 at 10:30")

	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, "2027-04-18", ur.OneOff[0].Date)
	assert.Equal(t, "10:30", ur.OneOff[0].Time)
	assert.Equal(t, "doctor appointment", ur.OneOff[0].Note)
	assert.Empty(t, ur.Daily)
}

func TestMissingTimeIsAsked(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.AskTime, e.say("dentist tomorrow"))
	d := e.draft()
	require.NotNil(t, d)
	assert.Equal(t, models.PhaseAwaitingTime, d.Phase)
	assert.Equal(t, "dentist", d.Note)
	assert.Equal(t, "2026-10-18", d.Date)

	reply := e.say("10:30")
	assert.Contains(t, reply, "2026-10-18 at 10:30")
	assert.Nil(t, e.draft())

	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, models.Reminder{
		ID: ur.OneOff[0].ID, ChatID: chat, Kind: models.KindOneOff,
		Time: "10:30", Date: "2026-10-18", Note: "dentist", CreatedAt: ur.OneOff[0].CreatedAt,
	}, ur.OneOff[0])
}

func TestTimeThenFrequency(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.AskTime, e.say("buy milk"))
	assert.Equal(t, messages.AskFrequency, e.say("at 7pm"))
	assert.Equal(t, models.PhaseAwaitingFrequency, e.draft().Phase)

	e.say("every day")
	ur := e.list()
	require.Len(t, ur.Daily, 1)
	assert.Equal(t, "19:00", ur.Daily[0].Time)
}

func TestFrequencyOnceDefaultsToToday(t *testing.T) {
	e := newEnv(t, nil)

	e.say("buy milk")
	e.say("at 7pm")
	e.say("just once")

	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, "2026-10-17", ur.OneOff[0].Date)
	assert.Equal(t, "19:00", ur.OneOff[0].Time)
}

func TestFrequencyAnswerWithDate(t *testing.T) {
	e := newEnv(t, nil)

	e.say("buy milk")
	e.say("at 7pm")
	e.say("tomorrow")

	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, "2026-10-18", ur.OneOff[0].Date)
}

func TestTwoBadAnswersAbandon(t *testing.T) {
	e := newEnv(t, nil)

	e.say("buy milk")
	assert.Equal(t, messages.AskTimeAgain, e.say("no idea"))
	d := e.draft()
	require.NotNil(t, d)
	assert.Equal(t, 1, d.RetryCount)
	assert.Equal(t, models.PhaseAwaitingTime, d.Phase)

	assert.Equal(t, messages.Abandoned, e.say("still no idea"))
	assert.Nil(t, e.draft())
	assert.Empty(t, e.list().Daily)
}

func TestGoodAnswerAfterBadOne(t *testing.T) {
	e := newEnv(t, nil)

	e.say("dentist tomorrow")
	e.say("whenever")
	e.say("9")

	assert.Nil(t, e.draft())
	require.Len(t, e.list().OneOff, 1)
	assert.Equal(t, "09:00", e.list().OneOff[0].Time)
}

func TestMissingDateIsAsked(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.AskDate, e.say("appointment with the dentist at 10"))
	assert.Equal(t, models.PhaseAwaitingDate, e.draft().Phase)

	e.say("next friday")
	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, "2026-10-23", ur.OneOff[0].Date)
	assert.Equal(t, "10:00", ur.OneOff[0].Time)
	assert.Equal(t, "appointment with the dentist", ur.OneOff[0].Note)
}

func TestImpossibleDateIsAskedAgain(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.AskDate, e.say("dentist on April 31 at 10:00"))
	d := e.draft()
	require.NotNil(t, d)
	assert.Equal(t, models.PhaseAwaitingDate, d.Phase)
	assert.Equal(t, models.RecurrenceOneOff, d.Recurrence)
	assert.Empty(t, e.list().Daily, "never saved as daily")

	e.say("tomorrow")
	ur := e.list()
	require.Len(t, ur.OneOff, 1)
	assert.Equal(t, "2026-10-18", ur.OneOff[0].Date)
	assert.Equal(t, "10:00", ur.OneOff[0].Time)
	assert.Equal(t, "dentist", ur.OneOff[0].Note)
	assert.Empty(t, ur.Daily)
}

func TestDailyCueDayPartMovesHour(t *testing.T) {
	e := newEnv(t, nil)

	reply := e.say("take pill every evening at 8")
	assert.Contains(t, reply, "20:00")

	ur := e.list()
	require.Len(t, ur.Daily, 1)
	assert.Equal(t, "20:00", ur.Daily[0].Time)
	assert.Equal(t, "take pill", ur.Daily[0].Note)
}

func TestBadDateAnswersAbandon(t *testing.T) {
	e := newEnv(t, nil)

	e.say("meeting at 10")
	assert.Equal(t, messages.AskDateAgain, e.say("soon"))
	assert.Equal(t, messages.Abandoned, e.say("later"))
	assert.Nil(t, e.draft())
}

func TestCancel(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.NothingToCancel, e.say("cancel"))

	e.say("buy milk")
	require.NotNil(t, e.draft())
	assert.Equal(t, messages.Cancelled, e.say("Never mind!"))
	assert.Nil(t, e.draft())
	assert.Empty(t, e.list().Daily)
}

func TestListPlaceholder(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.RenderList(models.UserReminders{}), e.say("my reminders"))

	e.say("pill at 9")
	reply := e.say("/list")
	assert.Contains(t, reply, "09:00 – pill")
	assert.Contains(t, reply, "Nothing saved.")
}

func TestDeleteDaily(t *testing.T) {
	e := newEnv(t, nil)
	e.say("pill at 9")

	assert.Equal(t, messages.Deleted(false, "10:00"), e.say("delete 10:00"))
	assert.Len(t, e.list().Daily, 1)

	assert.Equal(t, messages.Deleted(true, "09:00"), e.say("delete 9:00"))
	assert.Empty(t, e.list().Daily)
}

func TestDeleteOneOffAndAll(t *testing.T) {
	e := newEnv(t, nil)
	e.say("dentist 2026-11-02 10:00")
	e.say("pill at 9")
	e.say("pill at 21")

	assert.Equal(t, messages.Deleted(false, "2026-11-02 11:00"), e.say("delete 2026-11-02 11:00"))
	assert.Equal(t, messages.Deleted(true, "2026-11-02 10:00"), e.say("delete 2026-11-02 10:00"))
	assert.Empty(t, e.list().OneOff)

	assert.Equal(t, messages.DeleteUsage, e.say("delete tomorrow"))
	assert.Equal(t, messages.ClearedAll, e.say("delete all"))
	assert.Empty(t, e.list().Daily)
}

func TestHelpAndNotUnderstood(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, messages.Help, e.say("/start"))
	assert.Equal(t, messages.Help, e.say("/help@reminder_bot"))
	assert.Equal(t, messages.NotUnderstood, e.say("at 9"))
	assert.Nil(t, e.draft())
}

func TestRepeatedAppendsAreKept(t *testing.T) {
	e := newEnv(t, nil)
	e.say("pill at 9")
	e.say("pill at 9")
	assert.Len(t, e.list().Daily, 2)
}

type fakeInterpreter struct{ reply string }

func (f fakeInterpreter) Interpret(context.Context, string, string) (string, error) {
	return f.reply, nil
}

func TestSemanticWithoutTypeAsksFrequency(t *testing.T) {
	e := newEnv(t, fakeInterpreter{reply: `{"type": null, "time": "21:00", "date": null, "note": "brush teeth"}`})

	assert.Equal(t, messages.AskFrequency, e.say("brush teeth before bed"))
	d := e.draft()
	require.NotNil(t, d)
	assert.Equal(t, "21:00", d.Time)
	assert.Equal(t, "brush teeth", d.Note)

	e.say("daily")
	require.Len(t, e.list().Daily, 1)
}

type failingCommit struct {
	*storage.DB
}

func (failingCommit) CommitDraft(context.Context, models.Reminder) (models.Reminder, error) {
	return models.Reminder{}, errors.New("disk full")
}

func TestStoreErrorLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t, nil)
	e.say("buy milk")
	e.say("at 7pm")
	before := e.draft()
	require.NotNil(t, before)

	broken := New(failingCommit{e.db}, e.engine.ext, nil, nil)
	reply, err := broken.Handle(context.Background(), chat, "every day")
	require.Error(t, err)
	assert.Equal(t, messages.StoreFailed, reply)

	after := e.draft()
	require.NotNil(t, after)
	assert.Equal(t, before.Phase, after.Phase)
	assert.Equal(t, before.Time, after.Time)
	assert.Empty(t, e.list().Daily)
}

func TestSameChatIsSerialized(t *testing.T) {
	e := newEnv(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.engine.Handle(context.Background(), chat, fmt.Sprintf("pill %d at 9", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Len(t, e.list().Daily, 10)
}
