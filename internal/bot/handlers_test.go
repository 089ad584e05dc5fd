package bot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	tg "github.com/m3rciful/referralbot/core/telegram"
	"github.com/m3rciful/referralbot/core/telegram/router"
	"github.com/m3rciful/referralbot/internal/referral"

	tele "gopkg.in/telebot.v4"
)

type apiCall struct {
	method string
	params map[string]any
}

// fakeAPI records Bot API calls and answers them successfully.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)
	method := path.Base(r.URL.Path)
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: params})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "sendMessage" {
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeAPI) last() apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type wired struct {
	api      *fakeAPI
	bot      *tele.Bot
	reg      *tg.Registry
	handlers *Handlers
	h        *harness
}

func newWired(t *testing.T) *wired {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "123:abc", Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	h := newHarness(t, referral.ModeFlat)
	handlers := NewHandlers(h.flow)
	reg := tg.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &wired{api: api, bot: b, reg: reg, handlers: handlers, h: h}
}

func (w *wired) callback(t *testing.T, chatID int64, data string) {
	t.Helper()
	upd := tele.Update{ID: 10, Callback: &tele.Callback{
		ID:      "cb-1",
		Sender:  &tele.User{ID: chatID},
		Message: &tele.Message{ID: 3, Chat: &tele.Chat{ID: chatID}},
		Data:    data,
	}}
	route := router.CallbackRoute(w.reg, router.CallbackOptions{})
	if err := route.Handler(w.bot.NewContext(upd)); err != nil {
		t.Fatalf("callback %q: %v", data, err)
	}
}

func (w *wired) message(t *testing.T, chatID int64, text, payload string) {
	t.Helper()
	upd := tele.Update{ID: 11, Message: &tele.Message{
		ID:      4,
		Sender:  &tele.User{ID: chatID, Username: "ann", FirstName: "Ann"},
		Chat:    &tele.Chat{ID: chatID},
		Text:    text,
		Payload: payload,
	}}
	c := w.bot.NewContext(upd)
	if strings.HasPrefix(text, "/start") {
		for _, r := range router.CommandRoutes(w.reg) {
			if r.Endpoint == "/start" {
				if err := r.Handler(c); err != nil {
					t.Fatalf("/start: %v", err)
				}
				return
			}
		}
		t.Fatal("no /start route")
	}
	route := router.TextRoutes(w.handlers, w.reg)[0]
	if err := route.Handler(c); err != nil {
		t.Fatalf("text %q: %v", text, err)
	}
}

func TestCallbackWithoutSessionOnlyAnswers(t *testing.T) {
	w := newWired(t)
	w.callback(t, 1001, "\fjob_position|0")
	if got := w.api.methods(); len(got) != 1 || got[0] != "answerCallbackQuery" {
		t.Fatalf("api calls = %v", got)
	}
}

func TestUnknownCallbackAnswered(t *testing.T) {
	w := newWired(t)
	w.callback(t, 1001, "garbage")
	if got := w.api.methods(); len(got) != 1 || got[0] != "answerCallbackQuery" {
		t.Fatalf("api calls = %v", got)
	}
}

func TestReferralDetailAlert(t *testing.T) {
	w := newWired(t)
	w.callback(t, 1001, "\freferral|999")
	if got := w.api.methods(); len(got) != 1 {
		t.Fatalf("api calls = %v", got)
	}
	call := w.api.last()
	if call.params["text"] != msgUnknownUser || call.params["show_alert"] != true {
		t.Fatalf("alert params = %v", call.params)
	}
}

func TestStartCommandSendsLink(t *testing.T) {
	w := newWired(t)
	w.message(t, 1001, "/start", "")
	call := w.api.last()
	text, _ := call.params["text"].(string)
	if call.method != "sendMessage" || !strings.Contains(text, "https://t.me/refbot?start=ref_") {
		t.Fatalf("call = %+v", call)
	}
}

func TestTextRouting(t *testing.T) {
	w := newWired(t)
	w.message(t, 1001, "hello", "")
	if got := w.api.methods(); len(got) != 0 {
		t.Fatalf("text outside session sent %v", got)
	}

	w.callback(t, 1001, "\fadd_data|")
	w.message(t, 1001, "Ann Lee", "")
	if text, _ := w.api.last().params["text"].(string); text != "Father's name:" {
		t.Fatalf("in session = %q", text)
	}

	w.message(t, 1001, "/nope", "")
	if text, _ := w.api.last().params["text"].(string); text != msgUnknownCmd {
		t.Fatalf("unknown command = %q", text)
	}
}
