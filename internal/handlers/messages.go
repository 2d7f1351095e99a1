package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	h.metrics.MessageReceived()

	reply, err := h.Engine.Handle(ctx, chatID, msg.Text)
	if err != nil {
		h.log.Errorw("handle message", "chat_id", chatID, "err", err)
	}
	if reply == "" {
		return
	}
	if err := h.Send(ctx, chatID, reply); err != nil {
		h.log.Warnw("reply not sent", "chat_id", chatID, "err", err)
	}
}

// Send pushes text to a chat. It is also the scheduler's notifier.
func (h *Handler) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
