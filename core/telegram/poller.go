package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/referralbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// WebhookOptions declares webhook listener settings.
type WebhookOptions struct {
	Token  string
	Listen string
	Port   int
	// URL is the public base URL; the token path is appended.
	URL    string
	Secret string
}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	RunMode                string
	LongPollTimeoutSeconds int
	Webhook                WebhookOptions
}

// BuildPoller returns the update source for the configured run mode.
// In webhook mode the returned server must also be served and registered.
func BuildPoller(opts PollerOptions) (tele.Poller, *WebhookServer, error) {
	if strings.EqualFold(strings.TrimSpace(opts.RunMode), coreconfig.RunModeWebhook) {
		if err := opts.Webhook.validate(); err != nil {
			return nil, nil, err
		}
		srv := NewWebhookServer(opts.Webhook)
		return srv, srv, nil
	}

	timeout := defaultLongPollTimeout
	if opts.LongPollTimeoutSeconds > 0 {
		timeout = time.Duration(opts.LongPollTimeoutSeconds) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}, nil, nil
}
