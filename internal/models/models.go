package models

import "time"

// Kind tells daily reminders from one-off appointments.
type Kind string

const (
	KindDaily  Kind = "daily"
	KindOneOff Kind = "one_off"
)

// Reminder is a committed reminder. Date is set only for one-off reminders.
type Reminder struct {
	ID        int64  `db:"id"         json:"id"`
	ChatID    int64  `db:"chat_id"    json:"chat_id"`
	Kind      Kind   `db:"kind"       json:"kind"`
	Time      string `db:"time"       json:"time"`           // "HH:MM"
	Date      string `db:"date"       json:"date,omitempty"` // "YYYY-MM-DD", one-off only
	Note      string `db:"note"       json:"note"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	LastFired string `db:"last_fired" json:"last_fired,omitempty"` // "YYYY-MM-DD HH:MM" of the last delivery
}

// Valid reports whether r satisfies the committed-reminder invariants.
func (r Reminder) Valid() bool {
	if r.Time == "" {
		return false
	}
	switch r.Kind {
	case KindDaily:
		return r.Date == ""
	case KindOneOff:
		return r.Date != ""
	}
	return false
}

// UserReminders groups a user's reminders by kind, in insertion order.
type UserReminders struct {
	Daily  []Reminder `json:"daily"`
	OneOff []Reminder `json:"one_off"`
}

// Draft is the in-progress reminder of a pending dialogue.
type Draft struct {
	ChatID     int64      `db:"chat_id"`
	Phase      Phase      `db:"phase"`
	Note       string     `db:"note"`
	Time       string     `db:"time"` // empty -> not known yet
	Date       string     `db:"date"` // empty -> not known yet
	Recurrence Recurrence `db:"recurrence"`
	RetryCount int        `db:"retry_count"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// Reminder builds the committed reminder out of a complete draft.
func (d Draft) Reminder() Reminder {
	r := Reminder{
		ChatID: d.ChatID,
		Kind:   KindDaily,
		Time:   d.Time,
		Note:   d.Note,
	}
	if d.Recurrence == RecurrenceOneOff {
		r.Kind = KindOneOff
		r.Date = d.Date
	}
	return r
}
