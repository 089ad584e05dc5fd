package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

const testToken = "123:abc"

func newTestWebhook() *WebhookServer {
	return NewWebhookServer(WebhookOptions{
		Token:  testToken,
		Listen: "127.0.0.1",
		Port:   8443,
		URL:    "https://bot.example.com",
		Secret: "s3cret",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, secret bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret {
		req.Header.Set(secretHeader, "s3cret")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHealth(t *testing.T) {
	h := newTestWebhook().Handler()
	for _, p := range []string{"/", "/healthz"} {
		rec := do(t, h, http.MethodGet, p, "", false)
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Fatalf("GET %s = %d %q", p, rec.Code, rec.Body.String())
		}
	}
}

func TestWebhookURLs(t *testing.T) {
	s := newTestWebhook()
	if s.PublicURL() != "https://bot.example.com/webhook/"+testToken {
		t.Fatalf("PublicURL = %s", s.PublicURL())
	}
	if s.Addr() != "127.0.0.1:8443" {
		t.Fatalf("Addr = %s", s.Addr())
	}
}

func TestWebhookRejects(t *testing.T) {
	h := newTestWebhook().Handler()
	update := `{"update_id":1}`
	if rec := do(t, h, http.MethodPost, "/webhook/999:zzz", update, true); rec.Code != http.StatusNotFound {
		t.Fatalf("wrong token = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/webhook/"+testToken, update, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/webhook/"+testToken, "{", true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/webhook/"+testToken, update, true); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not polling = %d", rec.Code)
	}
}

func TestWebhookDeliversUpdate(t *testing.T) {
	s := newTestWebhook()
	dest := make(chan tele.Update, 1)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.Poll(nil, dest, stop)
		close(done)
	}()
	defer func() {
		close(stop)
		<-done
	}()

	deadline := time.Now().Add(time.Second)
	for {
		s.mu.RLock()
		bound := s.dest != nil
		s.mu.RUnlock()
		if bound {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("poller never bound")
		}
		time.Sleep(time.Millisecond)
	}

	rec := do(t, s.Handler(), http.MethodPost, "/webhook/"+testToken,
		`{"update_id":77,"message":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"hi"}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case upd := <-dest:
		if upd.ID != 77 || upd.Message == nil || upd.Message.Text != "hi" {
			t.Fatalf("update = %+v", upd)
		}
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}
}

func TestBuildPoller(t *testing.T) {
	p, srv, err := BuildPoller(PollerOptions{RunMode: "longpoll"})
	if err != nil || srv != nil {
		t.Fatalf("longpoll = %v, %v", srv, err)
	}
	if lp, ok := p.(*tele.LongPoller); !ok || lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("poller = %#v", p)
	}
	if _, _, err := BuildPoller(PollerOptions{RunMode: "webhook"}); err == nil {
		t.Fatal("webhook without options accepted")
	}
	_, srv, err = BuildPoller(PollerOptions{RunMode: "Webhook", Webhook: WebhookOptions{Token: testToken, URL: "https://x", Port: 1}})
	if err != nil || srv == nil {
		t.Fatalf("webhook = %v, %v", srv, err)
	}
}
