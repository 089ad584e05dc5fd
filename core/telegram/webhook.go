package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/referralbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	secretHeader      = "X-Telegram-Bot-Api-Secret-Token"
	readHeaderTimeout = 5 * time.Second
)

// WebhookServer receives updates over HTTP and feeds them to the bot.
// It implements tele.Poller: Poll only binds the update channel, the HTTP
// listener is owned by the server itself so health probes answer before
// and independently of the bot loop.
type WebhookServer struct {
	opts   WebhookOptions
	engine *gin.Engine
	srv    *http.Server

	mu   sync.RWMutex
	dest chan<- tele.Update
}

// NewWebhookServer builds the HTTP routes:
// POST /webhook/<token> for updates, GET / and GET /healthz for probes.
func NewWebhookServer(opts WebhookOptions) *WebhookServer {
	gin.SetMode(gin.ReleaseMode)
	s := &WebhookServer{opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), accessLog())

	health := func(c *gin.Context) { c.String(http.StatusOK, "OK") }
	s.engine.GET("/", health)
	s.engine.GET("/healthz", health)
	s.engine.POST("/webhook/:token", s.receive)
	s.srv = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Path is the route Telegram posts updates to.
func (s *WebhookServer) Path() string {
	return "/webhook/" + s.opts.Token
}

// PublicURL is the absolute URL registered with Telegram.
func (s *WebhookServer) PublicURL() string {
	return s.opts.URL + s.Path()
}

// Addr is the listen address in host:port form.
func (s *WebhookServer) Addr() string {
	return net.JoinHostPort(s.opts.Listen, strconv.Itoa(s.opts.Port))
}

// Handler exposes the routes for embedding and tests.
func (s *WebhookServer) Handler() http.Handler {
	return s.engine
}

// Register points the Telegram webhook at PublicURL.
func (s *WebhookServer) Register(b *tele.Bot) error {
	return b.SetWebhook(&tele.Webhook{
		Endpoint:    &tele.WebhookEndpoint{PublicURL: s.PublicURL()},
		SecretToken: s.opts.Secret,
	})
}

// Poll binds dest until stop is closed.
func (s *WebhookServer) Poll(_ *tele.Bot, dest chan tele.Update, stop chan struct{}) {
	s.mu.Lock()
	s.dest = dest
	s.mu.Unlock()

	<-stop

	s.mu.Lock()
	s.dest = nil
	s.mu.Unlock()
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *WebhookServer) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP listener.
func (s *WebhookServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *WebhookServer) receive(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.Param("token")), []byte(s.opts.Token)) != 1 {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if s.opts.Secret != "" && c.GetHeader(secretHeader) != s.opts.Secret {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var upd tele.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.String(http.StatusBadRequest, "bad update: %v", err)
		return
	}

	s.mu.RLock()
	dest := s.dest
	s.mu.RUnlock()
	// Not polling yet: Telegram retries on 5xx.
	if dest == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	select {
	case dest <- upd:
		c.String(http.StatusOK, "OK")
	case <-c.Request.Context().Done():
		c.AbortWithStatus(http.StatusServiceUnavailable)
	}
}

// accessLog writes one debug line per request keyed by route pattern, so the token never reaches logs.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		logger.LogEvent(c.Request.Context(), logger.HTTP, slog.LevelDebug, "http.request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

func (o WebhookOptions) validate() error {
	if o.Token == "" {
		return fmt.Errorf("webhook: empty bot token")
	}
	if o.URL == "" {
		return fmt.Errorf("webhook: empty public url")
	}
	if o.Port <= 0 {
		return fmt.Errorf("webhook: invalid port %d", o.Port)
	}
	return nil
}
