package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegram-reminder-bot/internal/models"
)

const (
	hourWords = `one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve`
	hourAlt   = `(\d{1,2}|` + hourWords + `)`
	atPrefix  = `(?:\bat\s+|@\s*)?`
	meridiem  = `(a\.m\.|p\.m\.|(?:am|pm)\b)`
	dayPart   = `(?:\s+(in\s+the\s+morning|in\s+the\s+afternoon|in\s+the\s+evening|at\s+night))?`
	months    = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`
	datePre   = `\b(?:(?:on|for)\s+)?(?:the\s+)?`
	ordinal   = `(?:st|nd|rd|th)?`
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"a": 1, "an": 1,
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var (
	// "in 20 minutes", "in an hour", "in half an hour"
	reRelative = regexp.MustCompile(`(?i)\bin\s+(half\s+an|an|a|\d{1,3}|` + hourWords + `)\s*(minutes?|mins?|hours?|hrs?)\b`)

	reISODate   = regexp.MustCompile(`(?i)` + datePre + `(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reDayMonth  = regexp.MustCompile(`(?i)` + datePre + `(\d{1,2})` + ordinal + `\s+(?:of\s+)?` + months + `\.?(?:,?\s+(\d{4}))?\b`)
	reMonthDay  = regexp.MustCompile(`(?i)` + datePre + months + `\.?\s+(?:the\s+)?(\d{1,2})` + ordinal + `(?:,?\s+(\d{4}))?\b`)
	reRelDay    = regexp.MustCompile(`(?i)` + datePre + `(day\s+after\s+tomorrow|tomorrow|today|tonight|this\s+morning|this\s+afternoon|this\s+evening)\b`)
	reWeekday   = regexp.MustCompile(`(?i)\b(?:(?:on|for)\s+)?(?:(next|this)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	reDailyCue  = regexp.MustCompile(`(?i)\b(every\s*day|daily|each\s+day|every\s+(?:morning|afternoon|evening|night))\b`)
	reOnceCue   = regexp.MustCompile(`(?i)\b(just\s+once|only\s+once|once|one[\s-]off|one\s+time)\b`)
	reOneOffCue = regexp.MustCompile(`(?i)\b(appointments?|meetings?|visits?|interviews?|consultations?)\b`)
	rePrefix    = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:remind\s+me\b\s*(?:(?:to|about|of|that)\b)?|set\s+(?:a\s+)?reminder\b\s*(?:(?:to|for)\b)?|reminder\s*:?)\s*`)
	reConnector = regexp.MustCompile(`(?i)(?:^|\s)(?:at|on|for|to|by|and|@)\s*$`)
	reSpaces    = regexp.MustCompile(`\s+`)

	reBareHour  = regexp.MustCompile(`(?i)^\s*(?:at\s+)?(\d{1,2})\s*$`)
	reBareClock = regexp.MustCompile(`(?i)^\s*(?:at\s+)?(\d{1,2})[.:h]?(\d{2})\s*$`)
)

type timePattern struct {
	re    *regexp.Regexp
	parse func(m []string) (h, min int, ok bool)

	// submatch indexes of the am/pm and day-part groups, 0 when absent.
	// A phrase carrying either keeps its own reading over "tonight".
	mer, part int
	absolute  bool // noon, midnight
}

var timePatterns = []timePattern{
	{ // half past nine, quarter to 5
		re: regexp.MustCompile(`(?i)` + atPrefix + `\b(half|quarter)\s+(past|after|to)\s+` + hourAlt + `\b` + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, ok := hourValue(m[3])
			if !ok || h > 23 {
				return 0, 0, false
			}
			min := 30
			if strings.EqualFold(m[1], "quarter") {
				min = 15
			}
			if strings.EqualFold(m[2], "to") {
				if min != 15 {
					return 0, 0, false
				}
				h, min = (h+23)%24, 45
				if h == 0 {
					h = 12 // "quarter to one" is 12:45
				}
			}
			return applyDayPart(h, m[4]), min, true
		},
		part: 4,
	},
	{ // noon, midnight
		re: regexp.MustCompile(`(?i)` + atPrefix + `\b(noon|midday|midnight)\b`),
		parse: func(m []string) (int, int, bool) {
			if strings.EqualFold(m[1], "midnight") {
				return 0, 0, true
			}
			return 12, 0, true
		},
		absolute: true,
	},
	{ // 10:30, 9:15pm, 10h30
		re: regexp.MustCompile(`(?i)` + atPrefix + `\b(\d{1,2})[:h](\d{2})(?:\s*` + meridiem + `)?` + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, _ := strconv.Atoi(m[1])
			min, _ := strconv.Atoi(m[2])
			return clock(h, min, m[3], m[4])
		},
		mer:  3,
		part: 4,
	},
	{ // at 9.30
		re: regexp.MustCompile(`(?i)(?:\bat\s+|@\s*)\b(\d{1,2})\.(\d{2})\b` + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, _ := strconv.Atoi(m[1])
			min, _ := strconv.Atoi(m[2])
			return clock(h, min, "", m[3])
		},
		part: 3,
	},
	{ // 9am, 7 p.m.
		re: regexp.MustCompile(`(?i)` + atPrefix + `\b(\d{1,2})\s*` + meridiem + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, _ := strconv.Atoi(m[1])
			return clock(h, 0, m[2], m[3])
		},
		mer:  2,
		part: 3,
	},
	{ // nine o'clock
		re: regexp.MustCompile(`(?i)` + atPrefix + `\b` + hourAlt + `\s*o['’]?\s?clock\b` + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, ok := hourValue(m[1])
			if !ok {
				return 0, 0, false
			}
			return clock(h, 0, "", m[2])
		},
		part: 2,
	},
	{ // at 9, at seven in the evening
		re: regexp.MustCompile(`(?i)(?:\bat\s+|@\s*)` + hourAlt + `\b` + dayPart),
		parse: func(m []string) (int, int, bool) {
			h, ok := hourValue(m[1])
			if !ok {
				return 0, 0, false
			}
			return clock(h, 0, "", m[2])
		},
		part: 2,
	},
}

// match is one phrase found in the text.
type match struct {
	start, end int
}

// parser walks a message and blanks out every phrase it consumes, so the
// remaining text is the note.
type parser struct {
	work []byte
	now  time.Time

	dayPart string // from "tonight", "every evening", ...
	badDate bool   // a date was written but is not a calendar day
}

func newParser(text string, now time.Time) *parser {
	return &parser{work: []byte(text), now: now}
}

func (p *parser) find(re *regexp.Regexp) ([]string, bool) {
	idx := re.FindSubmatchIndex(p.work)
	if idx == nil {
		return nil, false
	}
	m := make([]string, len(idx)/2)
	for i := range m {
		if idx[2*i] >= 0 {
			m[i] = string(p.work[idx[2*i]:idx[2*i+1]])
		}
	}
	p.cut(match{idx[0], idx[1]})
	return m, true
}

func (p *parser) peek(re *regexp.Regexp) bool {
	return re.Match(p.work)
}

func (p *parser) cut(m match) {
	for i := m.start; i < m.end; i++ {
		p.work[i] = ' '
	}
}

// ParseRules runs the deterministic date/time search over text.
func ParseRules(text string, now time.Time) Result {
	p := newParser(text, now)
	var res Result

	if day, hm, ok := p.relative(); ok {
		res.Date, res.Time = day, hm
	} else {
		res.Date, _ = p.date()
		p.dailyDayPart()
		res.Time, _ = p.time()
	}

	switch {
	case p.cutCue(reDailyCue):
		res.Recurrence = models.RecurrenceDaily
		res.Date = ""
	case res.Date != "":
		res.Recurrence = models.RecurrenceOneOff
	case p.badDate:
		// "April 31" still names a single day; the day is asked again
		res.Recurrence = models.RecurrenceOneOff
	case p.cutCue(reOnceCue), p.peek(reOneOffCue):
		res.Recurrence = models.RecurrenceOneOff
	}
	// "once" is a cue even next to a date
	p.cutCue(reOnceCue)

	res.Note = p.note()
	if res.Time != "" || res.Date != "" {
		res.Source = SourceRules
	}
	return res
}

// ParseAnswer reads a reply to a clarification question. Besides what
// ParseRules finds it accepts a bare hour ("9") or clock ("930", "9.30").
func ParseAnswer(text string, now time.Time) Result {
	res := ParseRules(text, now)
	if res.Time != "" {
		return res
	}
	if m := reBareClock.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h, min, ok := clock(h, min, "", ""); ok {
			res.Time = formatHM(h, min)
		}
	} else if m := reBareHour.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h, min, ok := clock(h, 0, "", ""); ok {
			res.Time = formatHM(h, min)
		}
	}
	if res.Time != "" {
		res.Note = ""
		res.Source = SourceRules
	}
	return res
}

// IsOneOffReply reports whether a frequency answer asks for a single reminder.
func IsOneOffReply(text string) bool {
	return reOnceCue.MatchString(text)
}

// dailyDayPart reads the day part of "every evening" and the like. The cue
// stays in the text for the recurrence decision.
func (p *parser) dailyDayPart() {
	if p.dayPart != "" {
		return
	}
	m := reDailyCue.FindSubmatch(p.work)
	if m == nil {
		return
	}
	cue := strings.ToLower(string(m[1]))
	for _, part := range []string{"morning", "afternoon", "evening", "night"} {
		if strings.HasSuffix(cue, part) {
			p.dayPart = part
			return
		}
	}
}

func (p *parser) cutCue(re *regexp.Regexp) bool {
	_, ok := p.find(re)
	return ok
}

func (p *parser) relative() (day, hm string, ok bool) {
	m, ok := p.find(reRelative)
	if !ok {
		return "", "", false
	}
	qty := strings.ToLower(reSpaces.ReplaceAllString(m[1], " "))
	unit := strings.ToLower(m[2])

	var d time.Duration
	switch {
	case qty == "half an":
		if !strings.HasPrefix(unit, "h") {
			return "", "", false
		}
		d = 30 * time.Minute
	default:
		n, ok := numberWords[qty]
		if !ok {
			n, _ = strconv.Atoi(qty)
		}
		if n <= 0 {
			return "", "", false
		}
		if strings.HasPrefix(unit, "h") {
			d = time.Duration(n) * time.Hour
		} else {
			d = time.Duration(n) * time.Minute
		}
	}
	at := p.now.Add(d)
	return at.Format(dateLayout), at.Format(hmLayout), true
}

func (p *parser) date() (string, bool) {
	now := p.now
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if m, ok := p.find(reISODate); ok {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(y, time.Month(mo), d, now.Location()); ok {
			return t.Format(dateLayout), true
		}
		p.badDate = true
	}
	if m, ok := p.find(reDayMonth); ok {
		d, _ := strconv.Atoi(m[1])
		if day, ok := resolveDayMonth(today, d, m[2], m[3]); ok {
			return day, true
		}
		p.badDate = true
	}
	if m, ok := p.find(reMonthDay); ok {
		d, _ := strconv.Atoi(m[2])
		if day, ok := resolveDayMonth(today, d, m[1], m[3]); ok {
			return day, true
		}
		p.badDate = true
	}
	if m, ok := p.find(reRelDay); ok {
		word := strings.ToLower(reSpaces.ReplaceAllString(m[1], " "))
		switch word {
		case "today":
			return today.Format(dateLayout), true
		case "tonight", "this evening":
			p.dayPart = "evening"
			return today.Format(dateLayout), true
		case "this afternoon":
			p.dayPart = "afternoon"
			return today.Format(dateLayout), true
		case "this morning":
			p.dayPart = "morning"
			return today.Format(dateLayout), true
		case "tomorrow":
			return today.AddDate(0, 0, 1).Format(dateLayout), true
		case "day after tomorrow":
			return today.AddDate(0, 0, 2).Format(dateLayout), true
		}
	}
	if m, ok := p.find(reWeekday); ok {
		target := weekdays[strings.ToLower(m[2])]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if ahead == 0 && strings.EqualFold(m[1], "next") {
			ahead = 7
		}
		return today.AddDate(0, 0, ahead).Format(dateLayout), true
	}
	return "", false
}

func (p *parser) time() (string, bool) {
	for _, tp := range timePatterns {
		idx := tp.re.FindSubmatchIndex(p.work)
		if idx == nil {
			continue
		}
		m := make([]string, len(idx)/2)
		for i := range m {
			if idx[2*i] >= 0 {
				m[i] = string(p.work[idx[2*i]:idx[2*i+1]])
			}
		}
		h, min, ok := tp.parse(m)
		if !ok {
			continue
		}
		own := tp.absolute || (tp.mer > 0 && m[tp.mer] != "") || (tp.part > 0 && m[tp.part] != "")
		if p.dayPart != "" && !own {
			h = applyDayPart(h, p.dayPart)
		}
		p.cut(match{idx[0], idx[1]})
		return formatHM(h, min), true
	}
	return "", false
}

func (p *parser) note() string {
	s := rePrefix.ReplaceAllString(string(p.work), "")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	for {
		prev := s
		s = strings.Trim(s, " .,;:!?-–—")
		s = reConnector.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
		if s == prev {
			return s
		}
	}
}

func hourValue(s string) (int, bool) {
	if n, ok := numberWords[strings.ToLower(s)]; ok && len(s) > 2 {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// clock validates a wall-clock time, applying am/pm and a day-part qualifier.
func clock(h, min int, mer, part string) (int, int, bool) {
	if min < 0 || min > 59 {
		return 0, 0, false
	}
	switch strings.ToLower(strings.ReplaceAll(mer, ".", "")) {
	case "am":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return 0, 0, false
		}
		if h != 12 {
			h += 12
		}
	default:
		if h < 0 || h > 23 {
			return 0, 0, false
		}
		h = applyDayPart(h, part)
	}
	return h, min, true
}

func applyDayPart(h int, part string) int {
	part = strings.ToLower(part)
	switch {
	case part == "":
		return h
	case strings.HasSuffix(part, "morning"):
		if h == 12 {
			return 0
		}
	case strings.HasSuffix(part, "afternoon"), strings.HasSuffix(part, "evening"):
		if h < 12 {
			return h + 12
		}
	case strings.HasSuffix(part, "night"):
		// "11 at night" is 23:00, "12 at night" midnight, "2 at night" 02:00
		switch {
		case h == 12:
			return 0
		case h >= 6 && h < 12:
			return h + 12
		}
	}
	return h
}

func resolveDayMonth(today time.Time, d int, month, year string) (string, bool) {
	mo, ok := monthValue(month)
	if !ok {
		return "", false
	}
	if year != "" {
		y, _ := strconv.Atoi(year)
		t, ok := calendarDate(y, mo, d, today.Location())
		if !ok {
			return "", false
		}
		return t.Format(dateLayout), true
	}
	t, ok := calendarDate(today.Year(), mo, d, today.Location())
	if !ok {
		// 29 February outside a leap year
		t, ok = calendarDate(today.Year()+1, mo, d, today.Location())
		if !ok {
			return "", false
		}
	}
	if t.Before(today) {
		if next, ok := calendarDate(today.Year()+1, mo, d, today.Location()); ok {
			t = next
		}
	}
	return t.Format(dateLayout), true
}

func monthValue(s string) (time.Month, bool) {
	s = strings.ToLower(s)
	if len(s) > 3 && s != "sept" {
		s = s[:3]
	}
	m, ok := monthNames[s]
	return m, ok
}

// calendarDate rejects dates time.Date would normalize, like April 31.
func calendarDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func formatHM(h, min int) string {
	return time.Date(2000, 1, 1, h, min, 0, 0, time.UTC).Format(hmLayout)
}
