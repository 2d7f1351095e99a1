package handlers

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"telegram-reminder-bot/internal/metrics"
)

const (
	updateDedupCacheSize = 4096

	defaultWorkers = 8
	workerQueue    = 64
)

// sender is the part of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Engine answers one chat message.
type Engine interface {
	Handle(ctx context.Context, chatID int64, text string) (string, error)
}

type Handler struct {
	Bot    sender
	Engine Engine

	// Workers is how many chats Listen serves at once.
	Workers int

	seen    *lru.Cache[int, struct{}]
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewHandler(bot sender, engine Engine, m *metrics.Metrics, log *zap.SugaredLogger) (*Handler, error) {
	seen, err := lru.New[int, struct{}](updateDedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("update dedupe cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{Bot: bot, Engine: engine, Workers: defaultWorkers, seen: seen, metrics: m, log: log}, nil
}

// Listen handles updates until ctx is done or the channel is closed.
// Messages are spread over a fixed set of workers by chat, so one chat's
// messages stay in order while a slow reply in it does not hold up others.
func (h *Handler) Listen(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	n := h.Workers
	if n < 1 {
		n = 1
	}
	shards := make([]chan *tgbotapi.Message, n)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan *tgbotapi.Message, workerQueue)
		wg.Add(1)
		go func(in <-chan *tgbotapi.Message) {
			defer wg.Done()
			for msg := range in {
				h.HandleMessage(ctx, msg)
			}
		}(shards[i])
	}
	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			msg := h.accept(upd)
			if msg == nil {
				continue
			}
			select {
			case shards[shardOf(msg.Chat.ID, n)] <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleUpdate routes a Telegram update on the calling goroutine.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if msg := h.accept(upd); msg != nil {
		h.HandleMessage(ctx, msg)
	}
}

// accept returns the message worth handling in upd, or nil. Only new text
// messages matter; edits, callbacks and media are ignored. Telegram may
// redeliver an update after a reconnect, so each update ID is taken once.
func (h *Handler) accept(upd tgbotapi.Update) *tgbotapi.Message {
	if seen, _ := h.seen.ContainsOrAdd(upd.UpdateID, struct{}{}); seen {
		h.log.Debugw("duplicate update", "update_id", upd.UpdateID)
		return nil
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return nil
	}
	return msg
}

func shardOf(chatID int64, n int) int {
	return int(uint64(chatID) % uint64(n))
}
