// Package sender delivers outbound Telegram calls off the update goroutine.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/referralbot/core/logger"
	"github.com/m3rciful/referralbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")

	botToken = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tune the dispatcher. Zero values pick the defaults.
type Options struct {
	// QueueSize bounds the pending jobs of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher runs send jobs on a fixed set of workers. Every job of a chat
// goes to the same worker, so a chat sees its replies in enqueue order.
type Dispatcher struct {
	opts   Options
	queues []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{opts: opts.withDefaults()}
	d.queues = make([]chan job, d.opts.Workers)
	d.wg.Add(len(d.queues))
	for i := range d.queues {
		q := make(chan job, d.opts.QueueSize)
		d.queues[i] = q
		go func() {
			defer d.wg.Done()
			for j := range q {
				d.deliver(j)
			}
		}()
	}
	return d
}

// Enqueue hands run to the worker of the chat in ctx without blocking.
// run may be called more than once when the failure is retryable.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	chat := logger.ChatIDFrom(ctx)
	if chat < 0 {
		chat = -chat
	}
	select {
	case d.queues[chat%int64(len(d.queues))] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, j)
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.String("endpoint", j.endpoint),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		d.failed.Add(1)
		logger.Error(j.ctx, component, "send.fail", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", redact(err)),
			slog.String("err_kind", classifyError(err)),
		)...)
		return
	}
	lvl := slog.LevelDebug
	if attempts > 1 {
		lvl = slog.LevelInfo
	}
	logger.LogEvent(j.ctx, logger.Component(component), lvl, "send.ok", append(attrs, slog.String("status", "ok"))...)
}

// attempt runs j until it succeeds, fails permanently, runs out of retries
// or ctx ends. It returns the number of calls made.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	for n := 1; ; n++ {
		err := j.run()
		if err == nil {
			return n, nil
		}
		if n > d.opts.MaxRetries || !netutil.Retryable(err) {
			return n, err
		}
		wait := netutil.Delay(err, n, d.opts.RetryBackoff)
		logger.Debug(j.ctx, component, "send.retry",
			slog.String("action", j.action),
			slog.Int("attempt", n),
			slog.Duration("delay", wait),
			slog.String("err_kind", classifyError(err)),
		)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return n, errors.Join(ctx.Err(), err)
		case <-t.C:
		}
	}
}

func classifyError(err error) string {
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		tlsErr tls.AlertError
		apiErr *tele.Error
		flood  tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr) && apiErr.Code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// redact keeps bot tokens out of logged error text.
func redact(err error) string {
	return botToken.ReplaceAllString(err.Error(), "bot<redacted>")
}
