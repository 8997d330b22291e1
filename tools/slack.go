package tools

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/Kochanac/pi-mono/tool"
)

// SlackTool posts messages to a Slack channel on the agent's behalf. Sends
// are throttled with a token bucket to stay inside the Web API rate limits.
type SlackTool struct {
	client  *slack.Client
	channel string
	limiter *rate.Limiter
}

// NewSlackTool creates the Slack adapter for a bot token and default channel.
func NewSlackTool(token, channel string) *SlackTool {
	return &SlackTool{
		client:  slack.New(token),
		channel: channel,
		limiter: rate.NewLimiter(rate.Limit(1), 3), // ~1 msg/s, burst 3
	}
}

// Name implements tool.Tool.
func (t *SlackTool) Name() string { return "slack_post" }

// Label implements tool.Tool.
func (t *SlackTool) Label() string { return "Post to Slack" }

// Description implements tool.Tool.
func (t *SlackTool) Description() string {
	return "Post a message to the configured Slack channel. Returns the message timestamp."
}

// Parameters implements tool.Tool.
func (t *SlackTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Message text to post.",
			},
			"channel": map[string]any{
				"type":        "string",
				"description": "Channel id override; defaults to the configured channel.",
			},
		},
		"required": []string{"text"},
	}
}

// Execute implements tool.Tool.
func (t *SlackTool) Execute(ctx context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	text, _ := args["text"].(string)
	channel := t.channel
	if c, ok := args["channel"].(string); ok && c != "" {
		channel = c
	}
	if channel == "" {
		return nil, fmt.Errorf("no slack channel configured")
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	_, ts, err := t.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return nil, fmt.Errorf("slack post: %w", err)
	}

	res := tool.TextResult(fmt.Sprintf("Posted to %s (ts %s)", channel, ts))
	res.Details = map[string]any{"channel": channel, "ts": ts}
	return res, nil
}
