// Package notify posts workflow results to Slack directly, for setups that
// bypass the hosted task API.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	slackgo "github.com/slack-go/slack"
)

// SlackNotifier posts messages via the Slack Web API.
type SlackNotifier struct {
	client *slackgo.Client
}

// NewSlackNotifier returns a notifier, or nil when no bot token is configured.
func NewSlackNotifier(botToken string) *SlackNotifier {
	if botToken == "" {
		return nil
	}
	return &SlackNotifier{client: slackgo.New(botToken)}
}

// Post sends text to the given channel.
func (n *SlackNotifier) Post(ctx context.Context, channel, text string) error {
	if n == nil {
		return fmt.Errorf("slack: bot token not configured")
	}
	_, ts, err := n.client.PostMessageContext(ctx, channel,
		slackgo.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", channel, err)
	}
	slog.Info("slack: message posted", "channel", channel, "ts", ts)
	return nil
}
