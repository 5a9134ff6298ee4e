//go:build !integration

package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"seu-creysson-bot/internal/application"
	"seu-creysson-bot/internal/config"
	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
)

// ---- Fakes ----

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	sendErr error
	fileURL string
	updates chan tgbotapi.Update
	stopped bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeHandler struct {
	mu      sync.Mutex
	calls   []string
	image   []byte
	dlErr   error
	replies []model.Reply

	// hook runs after a call is recorded, outside the lock; it may block
	hook func(call string)
}

func (h *fakeHandler) record(call string) []model.Reply {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	replies, hook := h.replies, h.hook
	h.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if replies != nil {
		return replies
	}
	return []model.Reply{model.Text(call)}
}

func (h *fakeHandler) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *fakeHandler) HandleCommand(ctx context.Context, from application.Sender, command string) []model.Reply {
	return h.record("command:" + command)
}

func (h *fakeHandler) HandleText(ctx context.Context, from application.Sender, text string) []model.Reply {
	return h.record("text:" + text)
}

func (h *fakeHandler) HandlePhoto(ctx context.Context, from application.Sender, image []byte) []model.Reply {
	h.mu.Lock()
	h.image = image
	h.mu.Unlock()
	return h.record("photo")
}

func (h *fakeHandler) HandleDownloadError(ctx context.Context, from application.Sender, err error) []model.Reply {
	h.mu.Lock()
	h.dlErr = err
	h.mu.Unlock()
	return h.record("download_error")
}

func (h *fakeHandler) HandleUnsupportedAttachment(ctx context.Context, from application.Sender) []model.Reply {
	return h.record("unsupported")
}

func (h *fakeHandler) RateLimited() model.Reply { return model.Text("slow down") }

type denyLimiter struct{ err error }

func (d denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, d.err
}

func newAdapter(t *testing.T, api *fakeAPI, h *fakeHandler, lim Limiter) *RealTelegramBotAdapter {
	t.Helper()
	cfg := &config.BotConfig{Token: "t", Workers: 2, PollTimeout: 1, RateLimit: 20}
	a, err := NewRealTelegramBotAdapter(api, cfg, h, lim, 16, nil)
	if err != nil {
		t.Fatalf("NewRealTelegramBotAdapter: %v", err)
	}
	return a
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "joao"},
		Text: text,
	}}
}

func commandUpdate(chatID int64, cmd string) tgbotapi.Update {
	up := textUpdate(chatID, "/"+cmd)
	up.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return up
}

// ---- Tests ----

func TestHandleUpdateRoutesByKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "imgdata")
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL}
	h := &fakeHandler{}
	a := newAdapter(t, api, h, nil)
	ctx := context.Background()

	photo := textUpdate(7, "")
	photo.Message.Photo = []tgbotapi.PhotoSize{{FileID: "small", FileSize: 1}, {FileID: "big", FileSize: 7}}

	pdf := textUpdate(7, "")
	pdf.Message.Document = &tgbotapi.Document{FileID: "doc", FileName: "boleto.pdf", MimeType: "application/pdf"}

	png := textUpdate(7, "")
	png.Message.Document = &tgbotapi.Document{FileID: "png", FileName: "scan.png", MimeType: "image/png", FileSize: 7}

	for _, up := range []tgbotapi.Update{commandUpdate(7, "start"), textUpdate(7, "oi"), photo, pdf, png} {
		if err := a.handleUpdate(ctx, up); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
	}

	want := []string{"command:start", "text:oi", "photo", "unsupported", "photo"}
	if strings.Join(h.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("wanted calls %v, got %v", want, h.calls)
	}
	if string(h.image) != "imgdata" {
		t.Errorf("wanted downloaded image, got %q", h.image)
	}
	if got := len(api.messages()); got != len(want) {
		t.Errorf("wanted %d sent messages, got %d", len(want), got)
	}
}

func TestDownloadRejectsOversizedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 64))
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL}
	h := &fakeHandler{}
	a := newAdapter(t, api, h, nil)

	t.Run("declared size", func(t *testing.T) {
		if _, err := a.download(context.Background(), "f", 1024); !errors.Is(err, domain.ErrImageTooLarge) {
			t.Fatalf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("actual body", func(t *testing.T) {
		if _, err := a.download(context.Background(), "f", 0); !errors.Is(err, domain.ErrImageTooLarge) {
			t.Fatalf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("reported to handler", func(t *testing.T) {
		up := textUpdate(3, "")
		up.Message.Photo = []tgbotapi.PhotoSize{{FileID: "big", FileSize: 4096}}
		if err := a.handleUpdate(context.Background(), up); err != nil {
			t.Fatalf("handleUpdate: %v", err)
		}
		if !errors.Is(h.dlErr, domain.ErrImageTooLarge) {
			t.Errorf("expected handler to see ErrImageTooLarge, got %v", h.dlErr)
		}
	})
}

func TestDownloadHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := newAdapter(t, &fakeAPI{fileURL: srv.URL}, &fakeHandler{}, nil)
	_, err := a.download(context.Background(), "f", 0)
	if err == nil || errors.Is(err, domain.ErrImageTooLarge) {
		t.Fatalf("expected plain download error, got %v", err)
	}
}

func TestRateLimitedChatGetsNotice(t *testing.T) {
	api := &fakeAPI{}
	h := &fakeHandler{}
	a := newAdapter(t, api, h, denyLimiter{})

	if err := a.handleUpdate(context.Background(), textUpdate(5, "oi")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	if len(h.calls) != 0 {
		t.Errorf("handler should not run when limited, got %v", h.calls)
	}
	sent := api.messages()
	if len(sent) != 1 || sent[0].Text != "slow down" {
		t.Fatalf("expected one rate limit notice, got %+v", sent)
	}
}

func TestRateLimiterErrorFailsOpen(t *testing.T) {
	h := &fakeHandler{}
	a := newAdapter(t, &fakeAPI{}, h, denyLimiter{err: errors.New("redis down")})

	if err := a.handleUpdate(context.Background(), textUpdate(5, "oi")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	if len(h.calls) != 1 {
		t.Errorf("expected handler to run, got %v", h.calls)
	}
}

func TestSendRepliesTargetsAndKeyboards(t *testing.T) {
	api := &fakeAPI{}
	h := &fakeHandler{replies: []model.Reply{
		{Text: "menu", Keyboard: [][]string{{"1"}, {"2"}}},
		{ChatID: 99, Text: "forward"},
		{Text: "bye", RemoveKeyboard: true},
	}}
	a := newAdapter(t, api, h, nil)

	if err := a.handleUpdate(context.Background(), textUpdate(5, "oi")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	sent := api.messages()
	if len(sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sent))
	}
	if sent[0].ChatID != 5 || sent[1].ChatID != 99 || sent[2].ChatID != 5 {
		t.Errorf("unexpected targets: %d %d %d", sent[0].ChatID, sent[1].ChatID, sent[2].ChatID)
	}
	kb, ok := sent[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok || len(kb.Keyboard) != 2 || !kb.ResizeKeyboard {
		t.Errorf("expected resizable two-row keyboard, got %#v", sent[0].ReplyMarkup)
	}
	if _, ok := sent[2].ReplyMarkup.(tgbotapi.ReplyKeyboardRemove); !ok {
		t.Errorf("expected keyboard removal, got %#v", sent[2].ReplyMarkup)
	}
}

func TestSendErrorsAreJoined(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("forbidden")}
	a := newAdapter(t, api, &fakeHandler{}, nil)

	err := a.handleUpdate(context.Background(), textUpdate(5, "oi"))
	if err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("expected send error, got %v", err)
	}
}

func TestStartPollingDrainsUpdates(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
	h := &fakeHandler{}
	a := newAdapter(t, api, h, nil)

	for i := int64(1); i <= 4; i++ {
		api.updates <- textUpdate(i, "oi")
	}
	close(api.updates)

	if err := a.StartPolling(context.Background()); err != nil {
		t.Fatalf("StartPolling: %v", err)
	}
	if len(h.calls) != 4 {
		t.Errorf("expected 4 handled updates, got %d", len(h.calls))
	}
	if !api.stopped {
		t.Error("expected StopReceivingUpdates to be called")
	}
}

func TestSlowChatDoesNotBlockOtherChats(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
	release := make(chan struct{})
	entered := make(chan struct{})
	served := make(chan string, 8)
	h := &fakeHandler{hook: func(call string) {
		if call == "text:lento" {
			close(entered)
			<-release
		}
		served <- call
	}}
	a := newAdapter(t, api, h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx) }()

	// chats 1 and 3 collide on chatID % workers
	api.updates <- textUpdate(1, "lento")
	<-entered
	api.updates <- textUpdate(1, "depois")
	api.updates <- textUpdate(3, "sim")

	select {
	case call := <-served:
		if call != "text:sim" {
			t.Fatalf("expected chat 3 to be served first, got %q", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat 3 was stuck behind chat 1")
	}
	for _, c := range h.seen() {
		if c == "text:depois" {
			t.Fatal("chat 1 update ran before its previous update finished")
		}
	}

	close(release)
	for _, want := range []string{"text:lento", "text:depois"} {
		select {
		case call := <-served:
			if call != want {
				t.Fatalf("chat 1 out of order: wanted %q, got %q", want, call)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChatQueueKeepsOrderPerChat(t *testing.T) {
	q := newChatQueue()
	if !q.push(1, textUpdate(1, "a")) {
		t.Fatal("first push on an idle chat must ask for a worker")
	}
	if q.push(1, textUpdate(1, "b")) {
		t.Fatal("push on a busy chat must not ask for another worker")
	}
	if !q.push(2, textUpdate(2, "x")) {
		t.Fatal("other chats are independent")
	}
	for _, want := range []string{"a", "b"} {
		up, ok := q.next(1)
		if !ok || up.Message.Text != want {
			t.Fatalf("wanted %q, got %+v ok=%v", want, up.Message, ok)
		}
	}
	if _, ok := q.next(1); ok {
		t.Fatal("expected chat 1 to be drained")
	}
	if !q.push(1, textUpdate(1, "c")) {
		t.Fatal("drained chat must be idle again")
	}
}

func TestStartPollingStopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	a := newAdapter(t, api, &fakeHandler{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("StartPolling did not return after cancel")
	}
}

func TestValidateToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/botgood/") {
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Seu Creysson","username":"seucreysson_bot"}}`)
			return
		}
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	endpoint := srv.URL + "/bot%s/%s"

	bot, err := ValidateToken(&config.BotConfig{Token: "good", APIEndpoint: endpoint})
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if bot.Self.UserName != "seucreysson_bot" {
		t.Errorf("unexpected bot user %q", bot.Self.UserName)
	}

	if _, err := ValidateToken(&config.BotConfig{Token: "bad", APIEndpoint: endpoint}); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestIsImageDocument(t *testing.T) {
	cases := []struct {
		doc  *tgbotapi.Document
		want bool
	}{
		{nil, false},
		{&tgbotapi.Document{MimeType: "image/jpeg"}, true},
		{&tgbotapi.Document{FileName: "SCAN.JPG"}, true},
		{&tgbotapi.Document{FileName: "boleto.pdf", MimeType: "application/pdf"}, false},
		{&tgbotapi.Document{FileName: "scan.tiff", MimeType: "image/tiff"}, false},
		{&tgbotapi.Document{FileName: "scan.tif"}, false},
		{&tgbotapi.Document{FileName: "foto.webp", MimeType: "image/webp"}, true},
	}
	for _, c := range cases {
		if got := isImageDocument(c.doc); got != c.want {
			t.Errorf("isImageDocument(%+v) = %v, want %v", c.doc, got, c.want)
		}
	}
}
