package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier posts popular-package signals to a Slack incoming webhook.
type SlackNotifier struct {
	logger     zerolog.Logger
	webhookURL string
	timing     timingConfig
	poster     *httpPoster
}

// SlackOption customizes SlackNotifier behavior.
type SlackOption func(*SlackNotifier)

// WithSlackTiming overrides timing parameters (primarily for testing).
func WithSlackTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) SlackOption {
	return func(s *SlackNotifier) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the
// webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...SlackOption) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; popular-package signals disabled")
	}

	notifier := &SlackNotifier{
		logger:     logger,
		webhookURL: webhookURL,
		timing:     defaultTiming,
	}

	for _, opt := range opts {
		opt(notifier)
	}

	notifier.poster = newHTTPPoster(logger, "slack", webhookURL, "application/json", notifier.timing)

	return notifier
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, signal Signal) error {
	if err := n.poster.waitForRateLimit(ctx, signal.Dependency); err != nil {
		return err
	}

	payload, err := json.Marshal(buildSlackMessage(signal))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.postWithRetry(ctx, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("dependency", signal.Dependency).
		Int("dependents", signal.Dependents).
		Msg("slack signal sent")

	return nil
}

func buildSlackMessage(signal Signal) slack.WebhookMessage {
	summary := fmt.Sprintf("Popular package: %s has %d dependents", signal.Dependency, signal.Dependents)

	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", summary, false, false))
	detail := slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn",
			fmt.Sprintf("*%s* crossed the popularity threshold: *%d* dependent manifests (threshold %d).",
				signal.Dependency, signal.Dependents, signal.Threshold),
			false, false),
		nil, nil)
	footer := slack.NewContextBlock("", slack.NewTextBlockObject("mrkdwn",
		fmt.Sprintf("Dependency: *%s*", signal.Dependency), false, false))

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, detail, footer}}
	return slack.WebhookMessage{
		Text:   summary,
		Blocks: &blockSet,
	}
}
