package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"telegram-reminder-bot/internal/messages"
)

var (
	cancelWords = words("cancel", "stop", "abort", "never mind", "nevermind", "forget it", "/cancel")
	listWords   = words("list", "show", "reminders", "my reminders", "ver", "/list")
	helpWords   = words("help", "/help", "/start")

	reDelete       = regexp.MustCompile(`^/?delete(?:\s+(.*))?$`)
	reDeleteOneOff = regexp.MustCompile(`^(\d{4}-\d{1,2}-\d{1,2})\s+(\d{1,2}:\d{2})$`)
)

func words(ws ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		m[w] = struct{}{}
	}
	return m
}

// normalize lowercases a command, collapses spaces and drops trailing
// punctuation and a "/cmd@botname" suffix.
func normalize(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	s = strings.TrimRight(s, ".!")
	if strings.HasPrefix(s, "/") {
		if at := strings.Index(s, "@"); at > 0 {
			rest := ""
			if sp := strings.Index(s[at:], " "); sp >= 0 {
				rest = s[at+sp:]
			}
			s = s[:at] + rest
		}
	}
	return s
}

func isCancel(text string) bool {
	_, ok := cancelWords[normalize(text)]
	return ok
}

// command handles the idle command surface. ok is false for free text.
func (e *Engine) command(ctx context.Context, chatID int64, text string) (string, bool, error) {
	cmd := normalize(text)

	if _, ok := listWords[cmd]; ok {
		ur, err := e.store.ListReminders(ctx, chatID)
		if err != nil {
			return messages.StoreFailed, true, fmt.Errorf("list reminders %d: %w", chatID, err)
		}
		return messages.RenderList(ur), true, nil
	}
	if _, ok := helpWords[cmd]; ok {
		return messages.Help, true, nil
	}

	m := reDelete.FindStringSubmatch(cmd)
	if m == nil {
		return "", false, nil
	}
	reply, err := e.delete(ctx, chatID, strings.TrimSpace(m[1]))
	return reply, true, err
}

func (e *Engine) delete(ctx context.Context, chatID int64, arg string) (string, error) {
	if arg == "all" {
		if err := e.store.ClearUser(ctx, chatID); err != nil {
			return messages.StoreFailed, fmt.Errorf("clear reminders %d: %w", chatID, err)
		}
		return messages.ClearedAll, nil
	}

	if m := reDeleteOneOff.FindStringSubmatch(arg); m != nil {
		day, err1 := time.Parse("2006-1-2", m[1])
		hm, err2 := time.Parse("15:04", m[2])
		if err1 != nil || err2 != nil {
			return messages.DeleteUsage, nil
		}
		date, clock := day.Format("2006-01-02"), hm.Format("15:04")
		found, err := e.store.DeleteOneOff(ctx, chatID, date, clock)
		if err != nil {
			return messages.StoreFailed, fmt.Errorf("delete one-off %d: %w", chatID, err)
		}
		return messages.Deleted(found, date+" "+clock), nil
	}

	hm, err := time.Parse("15:04", arg)
	if err != nil {
		return messages.DeleteUsage, nil
	}
	clock := hm.Format("15:04")
	found, err := e.store.DeleteDaily(ctx, chatID, clock)
	if err != nil {
		return messages.StoreFailed, fmt.Errorf("delete daily %d: %w", chatID, err)
	}
	return messages.Deleted(found, clock), nil
}
