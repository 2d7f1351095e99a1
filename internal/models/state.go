package models

// Phase is the dialogue phase of a user. PhaseIdle is never persisted:
// an idle user simply has no draft.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingTime
	PhaseAwaitingFrequency
	PhaseAwaitingDate
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingTime:
		return "awaiting_time"
	case PhaseAwaitingFrequency:
		return "awaiting_frequency"
	case PhaseAwaitingDate:
		return "awaiting_date"
	}
	return "unknown"
}

// Recurrence is what is known so far about how often a draft repeats.
type Recurrence int

const (
	RecurrenceUnknown Recurrence = iota
	RecurrenceDaily
	RecurrenceOneOff
)

func (r Recurrence) String() string {
	switch r {
	case RecurrenceDaily:
		return "daily"
	case RecurrenceOneOff:
		return "one_off"
	}
	return "unknown"
}
