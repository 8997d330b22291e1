package tools

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/Kochanac/pi-mono/tool"
)

// TelegramTool sends messages to a Telegram chat on the agent's behalf.
// Sends are throttled to respect the Bot API limits.
type TelegramTool struct {
	bot     *telego.Bot
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegramTool creates the Telegram adapter for an existing bot and
// default chat.
func NewTelegramTool(bot *telego.Bot, chatID int64) *TelegramTool {
	return &TelegramTool{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Name implements tool.Tool.
func (t *TelegramTool) Name() string { return "telegram_send" }

// Label implements tool.Tool.
func (t *TelegramTool) Label() string { return "Send to Telegram" }

// Description implements tool.Tool.
func (t *TelegramTool) Description() string {
	return "Send a message to the configured Telegram chat. Returns the message id."
}

// Parameters implements tool.Tool.
func (t *TelegramTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Message text to send.",
			},
			"chatId": map[string]any{
				"type":        "number",
				"description": "Chat id override; defaults to the configured chat.",
			},
		},
		"required": []string{"text"},
	}
}

// Execute implements tool.Tool.
func (t *TelegramTool) Execute(ctx context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	text, _ := args["text"].(string)

	chatID := t.chatID
	if c, ok := args["chatId"].(float64); ok && int64(c) != 0 {
		chatID = int64(c)
	}
	if chatID == 0 {
		return nil, fmt.Errorf("no telegram chat configured")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msg, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		return nil, fmt.Errorf("telegram send: %w", err)
	}

	res := tool.TextResult(fmt.Sprintf("Sent to chat %d (message %d)", chatID, msg.MessageID))
	res.Details = map[string]any{"chat_id": chatID, "message_id": msg.MessageID}
	return res, nil
}
