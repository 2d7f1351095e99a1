package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"telegram-reminder-bot/internal/models"
)

// ErrNoExtraction means the interpreter reply held no usable reminder.
var ErrNoExtraction = errors.New("no extraction possible")

// Interpreter is a generative language model asked to read a message.
// Implementations return the raw model reply.
type Interpreter interface {
	Interpret(ctx context.Context, instructions, text string) (string, error)
}

const promptTemplate = `You extract reminders from chat messages. Today is %s (%s), timezone %s.
Reply with JSON only, exactly this shape:
{"type": "daily" | "one_off" | null, "time": "HH:MM" | null, "date": "YYYY-MM-DD" | null, "note": "<what to remind about>"}
Use 24-hour time. "type" is "daily" for something repeated every day, "one_off" for a single event,
null when the message does not say. "date" is set only when the message names a calendar day.
"note" is the message without the time and date words.`

func buildPrompt(now time.Time) string {
	return fmt.Sprintf(promptTemplate, now.Format(dateLayout), now.Weekday(), now.Location())
}

type interpretation struct {
	Type *string `json:"type"`
	Time *string `json:"time"`
	Date *string `json:"date"`
	Note *string `json:"note"`
}

// parseInterpretation turns an untrusted model reply into a Result. Text
// around the outermost JSON object is dropped; broken JSON gets one repair
// attempt. "type" and "note" must be present.
func parseInterpretation(raw string) (Result, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Result{}, fmt.Errorf("%w: no JSON object in reply", ErrNoExtraction)
	}
	body := raw[start : end+1]

	fields, err := decodeObject(body)
	if err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrNoExtraction, err)
		}
		if fields, err = decodeObject(repaired); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrNoExtraction, err)
		}
	}
	for _, key := range []string{"type", "note"} {
		if _, ok := fields[key]; !ok {
			return Result{}, fmt.Errorf("%w: missing %q", ErrNoExtraction, key)
		}
	}

	var in interpretation
	b, _ := json.Marshal(fields)
	if err := json.Unmarshal(b, &in); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoExtraction, err)
	}

	res := Result{Source: SourceSemantic}
	if in.Note == nil || strings.TrimSpace(*in.Note) == "" {
		return Result{}, fmt.Errorf("%w: empty note", ErrNoExtraction)
	}
	res.Note = strings.TrimSpace(*in.Note)

	if v := deref(in.Time); v != "" {
		hm, ok := normalizeHM(v)
		if !ok {
			return Result{}, fmt.Errorf("%w: bad time %q", ErrNoExtraction, v)
		}
		res.Time = hm
	}
	if v := deref(in.Date); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return Result{}, fmt.Errorf("%w: bad date %q", ErrNoExtraction, v)
		}
		res.Date = t.Format(dateLayout)
	}

	switch strings.ToLower(strings.ReplaceAll(deref(in.Type), "-", "_")) {
	case "daily":
		res.Recurrence = models.RecurrenceDaily
		res.Date = ""
	case "one_off", "oneoff", "once":
		res.Recurrence = models.RecurrenceOneOff
	case "", "null":
		if res.Date != "" {
			res.Recurrence = models.RecurrenceOneOff
		}
	default:
		return Result{}, fmt.Errorf("%w: bad type %q", ErrNoExtraction, deref(in.Type))
	}
	return res, nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("not an object")
	}
	return fields, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func normalizeHM(s string) (string, bool) {
	for _, layout := range []string{"15:04", "3:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(hmLayout), true
		}
	}
	return "", false
}
