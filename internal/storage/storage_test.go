package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-reminder-bot/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data", "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func daily(chatID int64, hm, note string) models.Reminder {
	return models.Reminder{ChatID: chatID, Kind: models.KindDaily, Time: hm, Note: note}
}

func oneOff(chatID int64, day, hm, note string) models.Reminder {
	return models.Reminder{ChatID: chatID, Kind: models.KindOneOff, Date: day, Time: hm, Note: note}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	db, err := New(path)
	require.NoError(t, err)
	_, err = db.AppendReminder(context.Background(), daily(1, "09:00", "pill"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.ListReminders(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got.Daily, 1)
	assert.Equal(t, "pill", got.Daily[0].Note)
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	r, err := db.AppendReminder(ctx, daily(1, "09:00", "take pill"))
	require.NoError(t, err)
	assert.NotZero(t, r.ID)
	assert.NotZero(t, r.CreatedAt)

	_, err = db.AppendReminder(ctx, daily(1, "09:00", "take pill"))
	require.NoError(t, err)
	_, err = db.AppendReminder(ctx, oneOff(1, "2026-04-18", "10:30", "doctor"))
	require.NoError(t, err)
	_, err = db.AppendReminder(ctx, daily(2, "08:00", "other user"))
	require.NoError(t, err)

	got, err := db.ListReminders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got.Daily, 2, "identical appends are kept")
	require.Len(t, got.OneOff, 1)
	assert.Equal(t, "2026-04-18", got.OneOff[0].Date)

	empty, err := db.ListReminders(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty.Daily)
	assert.Empty(t, empty.OneOff)
}

func TestAppendRejectsInvalid(t *testing.T) {
	db := newTestDB(t)
	_, err := db.AppendReminder(context.Background(), models.Reminder{ChatID: 1, Kind: models.KindOneOff, Time: "10:00", Note: "no date"})
	require.Error(t, err)
	_, err = db.AppendReminder(context.Background(), models.Reminder{ChatID: 1, Kind: models.KindDaily, Note: "no time"})
	require.Error(t, err)
}

func TestDeleteDaily(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.AppendReminder(ctx, daily(1, "09:00", "a"))
	require.NoError(t, err)
	_, err = db.AppendReminder(ctx, daily(1, "21:00", "b"))
	require.NoError(t, err)

	found, err := db.DeleteDaily(ctx, 1, "10:00")
	require.NoError(t, err)
	assert.False(t, found)
	got, _ := db.ListReminders(ctx, 1)
	assert.Len(t, got.Daily, 2)

	found, err = db.DeleteDaily(ctx, 1, "09:00")
	require.NoError(t, err)
	assert.True(t, found)
	got, _ = db.ListReminders(ctx, 1)
	require.Len(t, got.Daily, 1)
	assert.Equal(t, "21:00", got.Daily[0].Time)

	found, err = db.DeleteDaily(ctx, 2, "21:00")
	require.NoError(t, err)
	assert.False(t, found, "other users' reminders are untouched")
}

func TestDeleteOneOff(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, err := db.AppendReminder(ctx, oneOff(1, "2026-04-18", "10:30", "doctor"))
	require.NoError(t, err)

	found, err := db.DeleteOneOff(ctx, 1, "2026-04-18", "10:00")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = db.DeleteOneOff(ctx, 1, "2026-04-18", "10:30")
	require.NoError(t, err)
	assert.True(t, found)
	got, _ := db.ListReminders(ctx, 1)
	assert.Empty(t, got.OneOff)
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	dr, err := db.GetDraft(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, dr)

	require.Error(t, db.SaveDraft(ctx, models.Draft{ChatID: 1}))

	in := models.Draft{
		ChatID:     1,
		Phase:      models.PhaseAwaitingDate,
		Note:       "dentist",
		Time:       "10:00",
		Recurrence: models.RecurrenceOneOff,
		RetryCount: 1,
	}
	require.NoError(t, db.SaveDraft(ctx, in))
	dr, err = db.GetDraft(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, dr)
	assert.Equal(t, in.Phase, dr.Phase)
	assert.Equal(t, in.Note, dr.Note)
	assert.Equal(t, in.Time, dr.Time)
	assert.Equal(t, in.Recurrence, dr.Recurrence)
	assert.Equal(t, 1, dr.RetryCount)

	in.Phase = models.PhaseAwaitingFrequency
	in.RetryCount = 0
	require.NoError(t, db.SaveDraft(ctx, in))
	dr, _ = db.GetDraft(ctx, 1)
	assert.Equal(t, models.PhaseAwaitingFrequency, dr.Phase)

	require.NoError(t, db.ClearDraft(ctx, 1))
	dr, _ = db.GetDraft(ctx, 1)
	assert.Nil(t, dr)
}

func TestCommitDraft(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.SaveDraft(ctx, models.Draft{ChatID: 1, Phase: models.PhaseAwaitingTime, Note: "pill"}))

	r, err := db.CommitDraft(ctx, daily(1, "09:00", "pill"))
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	dr, _ := db.GetDraft(ctx, 1)
	assert.Nil(t, dr)

	// a failed commit leaves the draft in place
	require.NoError(t, db.SaveDraft(ctx, models.Draft{ChatID: 1, Phase: models.PhaseAwaitingTime, Note: "pill"}))
	_, err = db.CommitDraft(ctx, models.Reminder{ChatID: 1, Kind: models.KindDaily, Note: "pill"})
	require.Error(t, err)
	dr, _ = db.GetDraft(ctx, 1)
	assert.NotNil(t, dr)
}

func TestDueRemindersAndClaim(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	d, _ := db.AppendReminder(ctx, daily(1, "09:00", "pill"))
	o, _ := db.AppendReminder(ctx, oneOff(2, "2026-04-18", "09:00", "doctor"))
	_, _ = db.AppendReminder(ctx, oneOff(2, "2026-04-19", "09:00", "later"))
	_, _ = db.AppendReminder(ctx, daily(3, "09:01", "not now"))

	due, err := db.DueReminders(ctx, "2026-04-18", "09:00")
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, d.ID, due[0].ID)
	assert.Equal(t, o.ID, due[1].ID)

	ok, err := db.ClaimDelivery(ctx, o.ID, "2026-04-18 09:00")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = db.ClaimDelivery(ctx, o.ID, "2026-04-18 09:00")
	require.NoError(t, err)
	assert.False(t, ok, "second claim for the same slot loses")

	due, _ = db.DueReminders(ctx, "2026-04-18", "09:00")
	require.Len(t, due, 1, "fired one-off is archived")
	got, _ := db.ListReminders(ctx, 2)
	assert.Len(t, got.OneOff, 1, "only the unfired one-off is listed")

	ok, _ = db.ClaimDelivery(ctx, d.ID, "2026-04-18 09:00")
	assert.True(t, ok)
	require.NoError(t, db.ReleaseDelivery(ctx, d.ID, "2026-04-18 09:00", ""))
	ok, _ = db.ClaimDelivery(ctx, d.ID, "2026-04-18 09:00")
	assert.True(t, ok, "released slot can be claimed again")
	ok, _ = db.ClaimDelivery(ctx, d.ID, "2026-04-19 09:00")
	assert.True(t, ok, "daily reminder fires again the next day")
}

func TestClearUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	_, _ = db.AppendReminder(ctx, daily(1, "09:00", "a"))
	_, _ = db.AppendReminder(ctx, daily(2, "09:00", "b"))
	require.NoError(t, db.SaveDraft(ctx, models.Draft{ChatID: 1, Phase: models.PhaseAwaitingTime, Note: "x"}))

	require.NoError(t, db.ClearUser(ctx, 1))
	got, _ := db.ListReminders(ctx, 1)
	assert.Empty(t, got.Daily)
	dr, _ := db.GetDraft(ctx, 1)
	assert.Nil(t, dr)
	other, _ := db.ListReminders(ctx, 2)
	assert.Len(t, other.Daily, 1)
}
