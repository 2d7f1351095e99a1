package messages

import (
	"fmt"
	"strings"

	"telegram-reminder-bot/internal/models"
)

const (
	Help = "Send me a reminder in plain words, for example:\n" +
		"• take blood-pressure pill at 9\n" +
		"• doctor appointment on April 18 at 10:30\n" +
		"• call mom tomorrow at 7pm\n\n" +
		"Commands:\n" +
		"list – show your reminders\n" +
		"delete 09:00 – delete the daily reminder at 09:00\n" +
		"delete 2027-04-18 10:30 – delete an appointment\n" +
		"delete all – delete everything\n" +
		"cancel – drop the reminder we are setting up"

	NotUnderstood = "Sorry, I didn't understand that.\n\n" + Help

	AskTime      = "What time should I remind you? For example 9:00 or 7pm."
	AskTimeAgain = "I couldn't read a time in that. Try something like 9:30 or 7pm."
	AskDate      = "On which day? For example tomorrow, April 18 or 2027-04-18."
	AskDateAgain = "I couldn't read a date in that. Try something like tomorrow or 2027-04-18."
	AskFrequency = "Should I remind you every day, or just once?"

	Abandoned       = "I still couldn't understand, so I dropped that reminder. Send it again whenever you like."
	Cancelled       = "Okay, cancelled. Nothing was saved."
	NothingToCancel = "There is nothing to cancel."
	StoreFailed     = "Sorry, something went wrong and nothing was changed. Please try again."

	DeleteUsage = "To delete, send \"delete HH:MM\" for a daily reminder or \"delete YYYY-MM-DD HH:MM\" for an appointment."
	ClearedAll  = "All your reminders are deleted."

	placeholder = "Nothing saved."
)

// Confirm is the reply sent after a reminder is saved.
func Confirm(r models.Reminder) string {
	if r.Kind == models.KindOneOff {
		return fmt.Sprintf("Saved! I'll remind you on %s at %s: %s", r.Date, r.Time, r.Note)
	}
	return fmt.Sprintf("Saved! I'll remind you every day at %s: %s", r.Time, r.Note)
}

// Deleted reports the outcome of a delete command. key is what the user
// asked to delete ("09:00" or "2027-04-18 10:30").
func Deleted(found bool, key string) string {
	if found {
		return "Deleted the reminder at " + key + "."
	}
	return "No reminder found at " + key + "."
}

// RenderList formats a user's reminders grouped by kind. An empty group
// shows a placeholder line.
func RenderList(ur models.UserReminders) string {
	var b strings.Builder
	b.WriteString("Daily reminders:\n")
	writeGroup(&b, ur.Daily)
	b.WriteString("\nAppointments:\n")
	writeGroup(&b, ur.OneOff)
	return strings.TrimRight(b.String(), "\n")
}

func writeGroup(b *strings.Builder, rs []models.Reminder) {
	if len(rs) == 0 {
		b.WriteString(placeholder + "\n")
		return
	}
	for _, r := range rs {
		b.WriteString("• ")
		if r.Date != "" {
			b.WriteString(r.Date + " ")
		}
		b.WriteString(r.Time + " – " + r.Note + "\n")
	}
}

// Notification is the text pushed to the user when a reminder is due.
func Notification(r models.Reminder) string {
	if r.Kind == models.KindOneOff {
		return "📅 Appointment reminder: " + r.Note
	}
	return "⏰ Daily reminder: " + r.Note
}
