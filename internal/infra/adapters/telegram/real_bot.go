package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"seu-creysson-bot/internal/application"
	"seu-creysson-bot/internal/config"
	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
	"seu-creysson-bot/internal/infra/logging"
	"seu-creysson-bot/internal/infra/metrics"
	red "seu-creysson-bot/internal/infra/redis"
)

// botAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler is the conversation layer the adapter delegates to.
type Handler interface {
	HandleCommand(ctx context.Context, from application.Sender, command string) []model.Reply
	HandleText(ctx context.Context, from application.Sender, text string) []model.Reply
	HandlePhoto(ctx context.Context, from application.Sender, image []byte) []model.Reply
	HandleDownloadError(ctx context.Context, from application.Sender, err error) []model.Reply
	HandleUnsupportedAttachment(ctx context.Context, from application.Sender) []model.Reply
	RateLimited() model.Reply
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ Handler = (*application.ReceiptBot)(nil)

// ValidateToken calls getMe on the configured endpoint. It must succeed
// before any update is consumed.
func ValidateToken(cfg *config.BotConfig) (*tgbotapi.BotAPI, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, cfg.APIEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	return bot, nil
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to the Handler.
type RealTelegramBotAdapter struct {
	bot     botAPI
	cfg     *config.BotConfig
	handler Handler
	limiter Limiter
	log     *zerolog.Logger

	httpClient    *http.Client
	maxImageBytes int64
	updateWorkers int
	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter wires an already validated bot. limiter may be nil.
func NewRealTelegramBotAdapter(bot botAPI, cfg *config.BotConfig, handler Handler, limiter Limiter, maxImageBytes int64, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if bot == nil {
		return nil, errors.New("bot api is nil")
	}
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		handler:       handler,
		limiter:       limiter,
		log:           logger,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		maxImageBytes: maxImageBytes,
		updateWorkers: workers,
	}, nil
}

// StartPolling blocks until ctx is cancelled or the update channel closes.
// Workers share one channel of ready chats; a chat is served by one worker
// at a time, so a slow OCR run only delays later events of the same chat.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.cfg.PollTimeout
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	queue := newChatQueue()
	readyChats := make(chan int64, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for chatID := range readyChats {
				for {
					up, ok := queue.next(chatID)
					if !ok {
						break
					}
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Error().Err(err).Int("worker", id).Int64("chat_id", chatID).Msg("tg worker error")
					}
				}
			}
		}(i)
	}

	drain := func() {
		r.bot.StopReceivingUpdates()
		close(readyChats)
		wg.Wait()
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				drain()
				return nil
			}
			chatID := chatOf(up)
			if !queue.push(chatID, up) {
				continue
			}
			select {
			case readyChats <- chatID:
			case <-ctx.Done():
				drain()
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		metrics.IncTelegramUpdate("other")
		return nil
	}
	chatID := msg.Chat.ID
	ctx = logging.WithTrace(ctx, chatID)
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "TelegramAdapter.handleUpdate")()

	from := application.Sender{ChatID: chatID}
	if msg.From != nil {
		from.UserName = msg.From.UserName
	}
	kind := classify(msg)
	metrics.IncTelegramUpdate(kind)
	log.Debug().Str("kind", kind).Msg("update received")

	if r.limiter != nil && r.cfg.RateLimit > 0 {
		allowed, err := r.limiter.Allow(ctx, red.ChatKey(chatID), r.cfg.RateLimit, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limit error")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			return r.sendReplies(ctx, chatID, []model.Reply{r.handler.RateLimited()})
		}
	}

	return r.sendReplies(ctx, chatID, r.route(ctx, from, msg, kind))
}

func classify(msg *tgbotapi.Message) string {
	switch {
	case msg.IsCommand():
		return "command"
	case len(msg.Photo) > 0:
		return "photo"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	default:
		return "other"
	}
}

func (r *RealTelegramBotAdapter) route(ctx context.Context, from application.Sender, msg *tgbotapi.Message, kind string) []model.Reply {
	switch kind {
	case "command":
		return r.handler.HandleCommand(ctx, from, msg.Command())
	case "photo":
		// last size is the largest
		p := msg.Photo[len(msg.Photo)-1]
		return r.handleImage(ctx, from, p.FileID, int64(p.FileSize))
	case "document":
		if !isImageDocument(msg.Document) {
			return r.handler.HandleUnsupportedAttachment(ctx, from)
		}
		return r.handleImage(ctx, from, msg.Document.FileID, int64(msg.Document.FileSize))
	case "text":
		return r.handler.HandleText(ctx, from, msg.Text)
	default:
		return nil
	}
}

func (r *RealTelegramBotAdapter) handleImage(ctx context.Context, from application.Sender, fileID string, size int64) []model.Reply {
	img, err := r.download(ctx, fileID, size)
	if err != nil {
		return r.handler.HandleDownloadError(ctx, from, err)
	}
	return r.handler.HandlePhoto(ctx, from, img)
}

// sendReplies sends every reply and joins the errors.
func (r *RealTelegramBotAdapter) sendReplies(ctx context.Context, chatID int64, replies []model.Reply) error {
	var errs []error
	for _, rep := range replies {
		if err := r.SendReply(ctx, chatID, rep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendReply sends rep to rep.ChatID, or to chatID when it is zero.
func (r *RealTelegramBotAdapter) SendReply(ctx context.Context, chatID int64, rep model.Reply) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	target := chatID
	if rep.ChatID != 0 {
		target = rep.ChatID
	}
	msg := tgbotapi.NewMessage(target, rep.Text)
	switch {
	case len(rep.Keyboard) > 0:
		msg.ReplyMarkup = replyKeyboard(rep.Keyboard)
	case rep.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	_, err := r.bot.Send(msg)
	metrics.IncReplySent(err == nil)
	if err != nil {
		return fmt.Errorf("send to %d: %w", target, err)
	}
	return nil
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	kbRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		kbRows = append(kbRows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(kbRows...)
	kb.ResizeKeyboard = true
	return kb
}
