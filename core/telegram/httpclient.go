package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	minClientTimeout = 30 * time.Second
	// pollSlack covers the round trip on top of a long poll wait.
	pollSlack        = 10 * time.Second
	transportRetry   = 2
	transportBackoff = 500 * time.Millisecond
)

// BuildHTTPClient returns the client used for Bot API calls. The overall
// timeout always outlasts a long poll of pollTimeout.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsTimeout,
	}
	return &http.Client{
		Timeout: max(minClientTimeout, pollTimeout+pollSlack),
		Transport: &retryTransport{
			base:    transport,
			retries: transportRetry,
			backoff: transportBackoff,
		},
	}
}

// retryTransport repeats requests that never reached Telegram, such as a
// failed dial. Bot API error answers pass through untouched: the sender
// dispatcher decides about those.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt > t.retries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		if req.Body != nil {
			if req.GetBody == nil {
				return nil, err
			}
			body, berr := req.GetBody()
			if berr != nil {
				return nil, err
			}
			req = req.Clone(req.Context())
			req.Body = body
		}

		delay := netutil.Delay(err, attempt, t.backoff)
		logger.TG.Debug("api retry",
			slog.String("event", "http.retry"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
