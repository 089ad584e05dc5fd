// Package netutil classifies Bot API failures for retry decisions.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxDelay caps any single wait, including flood control hints.
const maxDelay = 30 * time.Second

// ShouldRetry reports whether a transport error is transient: a timeout or a
// failed dial. It is safe to use below net/http where no response exists yet.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Timeout() || opErr.Op == "dial") {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Retryable widens ShouldRetry with Bot API answers worth repeating:
// flood control (429) and server side failures (5xx).
func Retryable(err error) bool {
	if ShouldRetry(err) {
		return true
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	var apiErr *tele.Error
	return errors.As(err, &apiErr) && apiErr.Code >= 500
}

// Delay is the wait before retrying after the given 1-based attempt.
// Flood control errors carry their own wait; everything else backs off linearly.
func Delay(err error, attempt int, base time.Duration) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return min(time.Duration(flood.RetryAfter)*time.Second, maxDelay)
	}
	if attempt < 1 {
		attempt = 1
	}
	return min(base*time.Duration(attempt), maxDelay)
}
