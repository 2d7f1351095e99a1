// Package extractor turns a free-text chat message into reminder slots.
//
// Deterministic English date/time rules run first; only when they find
// neither a time nor a date is the message handed to the semantic
// Interpreter. Interpreter output is untrusted and never escapes this
// package as an error: a failed interpretation simply leaves the slots empty.
package extractor

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"telegram-reminder-bot/internal/models"
)

const (
	hmLayout   = "15:04"
	dateLayout = "2006-01-02"
)

// Source tells which stage produced a Result.
type Source int

const (
	SourceNone Source = iota
	SourceRules
	SourceSemantic
)

func (s Source) String() string {
	switch s {
	case SourceRules:
		return "rules"
	case SourceSemantic:
		return "semantic"
	}
	return "none"
}

// Result is a partial reminder. Time is "HH:MM", Date "YYYY-MM-DD"; both may
// be empty.
type Result struct {
	Note       string
	Time       string
	Date       string
	Recurrence models.Recurrence
	Source     Source
}

// Empty reports whether nothing usable was extracted.
func (r Result) Empty() bool {
	return r.Note == "" && r.Time == "" && r.Date == ""
}

type Config struct {
	Location    *time.Location
	Interpreter Interpreter // nil disables the semantic fallback
	Timeout     time.Duration
	Clock       clockwork.Clock
	Logger      *zap.SugaredLogger
}

type Extractor struct {
	loc     *time.Location
	interp  Interpreter
	timeout time.Duration
	clock   clockwork.Clock
	log     *zap.SugaredLogger
}

func New(cfg Config) *Extractor {
	e := &Extractor{
		loc:     cfg.Location,
		interp:  cfg.Interpreter,
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	return e
}

// Now is the current wall-clock time in the configured timezone.
func (e *Extractor) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// Extract runs the rules and, when they find nothing, the semantic fallback.
func (e *Extractor) Extract(ctx context.Context, text string) Result {
	now := e.Now()
	res := ParseRules(text, now)
	if res.Source == SourceRules {
		return res
	}
	if e.interp == nil {
		return res
	}

	sem, err := e.interpret(ctx, text, now)
	if err != nil {
		e.log.Debugw("semantic extraction failed", "err", err)
		return res
	}
	return sem
}

// Answer parses a reply to a clarification question. Only the rules run.
func (e *Extractor) Answer(text string) Result {
	return ParseAnswer(text, e.Now())
}

func (e *Extractor) interpret(ctx context.Context, text string, now time.Time) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.interp.Interpret(ctx, buildPrompt(now), text)
	if err != nil {
		return Result{}, err
	}
	return parseInterpretation(raw)
}
