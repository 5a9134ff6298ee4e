package application

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
	"seu-creysson-bot/internal/domain/ports/repository"
	"seu-creysson-bot/internal/infra/logging"
	"seu-creysson-bot/internal/infra/metrics"
	"seu-creysson-bot/internal/usecase"
)

// Menu button labels. They are sent as the reply keyboard and matched back
// by substring, so they are not translated.
const (
	MenuSendReceipt = "1. Enviar comprovante para imobiliária"
	MenuSuggestions = "2. Sugestões"

	menuSendReceiptMarker = "1. Enviar comprovante"
	menuSuggestionsMarker = "2. Sugestões"
)

// Translator resolves reply keys to texts (see infra/i18n).
type Translator interface {
	T(key string, args ...interface{}) string
}

// Sender identifies the chat an event came from.
type Sender struct {
	ChatID   int64
	UserName string
}

func (s Sender) display() string {
	if s.UserName != "" {
		return "@" + s.UserName
	}
	return "(sem usuário)"
}

type Options struct {
	AgencyChatID int64   // confirmed receipts are forwarded here when set
	StaffChatIDs []int64 // suggestions are forwarded here
	Dev          bool
}

// ReceiptBot maps inbound chat events to replies. The per-chat step stored
// in the StateRepository decides how free text is read; nothing else is
// remembered between events.
type ReceiptBot struct {
	receipts usecase.ReceiptUseCase
	states   repository.StateRepository
	texts    Translator
	opts     Options
	log      *zerolog.Logger
}

func NewReceiptBot(receipts usecase.ReceiptUseCase, states repository.StateRepository, texts Translator, opts Options, logger *zerolog.Logger) *ReceiptBot {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReceiptBot{receipts: receipts, states: states, texts: texts, opts: opts, log: logger}
}

func (b *ReceiptBot) menuKeyboard() [][]string {
	return [][]string{{MenuSendReceipt}, {MenuSuggestions}}
}

// HandleCommand handles /start, /help and /cancel. Other commands get the
// fallback reply.
func (b *ReceiptBot) HandleCommand(ctx context.Context, from Sender, command string) []model.Reply {
	switch strings.ToLower(command) {
	case "start":
		b.saveState(ctx, from.ChatID, model.IdleState())
		return []model.Reply{
			model.Text(b.texts.T("welcome")),
			{Text: b.texts.T("menu_prompt"), Keyboard: b.menuKeyboard()},
		}
	case "help":
		return []model.Reply{{Text: b.texts.T("help"), Keyboard: b.menuKeyboard()}}
	case "cancel":
		if err := b.states.ClearState(ctx, from.ChatID); err != nil {
			logging.With(ctx, b.log).Warn().Err(err).Msg("clear state failed")
		}
		return []model.Reply{{Text: b.texts.T("cancelled"), Keyboard: b.menuKeyboard()}}
	default:
		return []model.Reply{model.Text(b.texts.T("fallback_menu"))}
	}
}

// HandleText dispatches plain text. Menu buttons are honored in any step;
// otherwise the stored step decides.
func (b *ReceiptBot) HandleText(ctx context.Context, from Sender, text string) []model.Reply {
	switch {
	case strings.Contains(text, menuSendReceiptMarker):
		b.saveState(ctx, from.ChatID, model.NewConversationState(model.StepAwaitingPhoto))
		return []model.Reply{model.Text(b.texts.T("ask_receipt"))}
	case strings.Contains(text, menuSuggestionsMarker):
		b.saveState(ctx, from.ChatID, model.NewConversationState(model.StepAwaitingSuggestion))
		return []model.Reply{model.Text(b.texts.T("ask_suggestion"))}
	}

	st := b.loadState(ctx, from.ChatID)
	switch st.Step {
	case model.StepAwaitingConfirmation:
		return b.handleAnswer(ctx, from, st, text)
	case model.StepAwaitingSuggestion:
		return b.handleSuggestion(ctx, from, text)
	default:
		return []model.Reply{model.Text(b.texts.T("fallback_menu"))}
	}
}

func (b *ReceiptBot) handleAnswer(ctx context.Context, from Sender, st *model.ConversationState, text string) []model.Reply {
	answer := ParseAnswer(text)
	metrics.IncConfirmation(answer.String())

	switch answer {
	case AnswerYes:
		b.saveState(ctx, from.ChatID, model.IdleState())
		logging.With(ctx, b.log).Info().Strs("fields", st.Summary.Matched()).Msg("receipt confirmed")
		out := []model.Reply{model.Text(b.texts.T("confirmed"))}
		if b.opts.AgencyChatID != 0 {
			out = append(out, model.Reply{
				ChatID: b.opts.AgencyChatID,
				Text:   b.texts.T("receipt_forward", from.display(), from.ChatID, st.Summary.Render()),
			})
		}
		return out
	case AnswerNo:
		b.saveState(ctx, from.ChatID, model.NewConversationState(model.StepAwaitingPhoto))
		return []model.Reply{model.Text(b.texts.T("resubmit"))}
	default:
		return []model.Reply{model.Text(b.texts.T("answer_yes_no"))}
	}
}

func (b *ReceiptBot) handleSuggestion(ctx context.Context, from Sender, text string) []model.Reply {
	metrics.IncSuggestion()
	b.saveState(ctx, from.ChatID, model.IdleState())
	logging.With(ctx, b.log).Info().Str("suggestion", logging.Redact(text, b.opts.Dev)).Msg("suggestion received")

	out := []model.Reply{model.Text(b.texts.T("suggestion_thanks"))}
	for _, id := range b.opts.StaffChatIDs {
		out = append(out, model.Reply{
			ChatID: id,
			Text:   b.texts.T("suggestion_forward", from.display(), from.ChatID, strings.TrimSpace(text)),
		})
	}
	return out
}

// HandlePhoto runs OCR and field extraction over a downloaded image. On any
// failure the stored step is left as it was.
func (b *ReceiptBot) HandlePhoto(ctx context.Context, from Sender, image []byte) []model.Reply {
	log := logging.With(ctx, b.log)
	summary, err := b.receipts.Process(ctx, image)
	switch {
	case errors.Is(err, domain.ErrNoFields):
		log.Info().Msg("no receipt fields recognized")
		return []model.Reply{model.Text(b.texts.T("unreadable"))}
	case err != nil:
		log.Warn().Err(err).Msg("receipt image could not be read")
		return []model.Reply{model.Text(b.texts.T("ocr_failed"))}
	}

	st := model.NewConversationState(model.StepAwaitingConfirmation)
	st.Summary = summary
	b.saveState(ctx, from.ChatID, st)
	return []model.Reply{model.Text(b.texts.T("summary", summary.Render()))}
}

// HandleDownloadError reports an attachment that could not be fetched.
func (b *ReceiptBot) HandleDownloadError(ctx context.Context, from Sender, err error) []model.Reply {
	metrics.IncReceiptProcessed("download_failed")
	logging.With(ctx, b.log).Warn().Err(err).Msg("attachment download failed")
	if errors.Is(err, domain.ErrImageTooLarge) {
		return []model.Reply{model.Text(b.texts.T("image_too_large"))}
	}
	return []model.Reply{model.Text(b.texts.T("ocr_failed"))}
}

// HandleUnsupportedAttachment answers documents that are not images.
func (b *ReceiptBot) HandleUnsupportedAttachment(ctx context.Context, from Sender) []model.Reply {
	return []model.Reply{model.Text(b.texts.T("not_an_image"))}
}

func (b *ReceiptBot) RateLimited() model.Reply {
	return model.Text(b.texts.T("rate_limited"))
}

// loadState treats a missing or unreadable state as idle.
func (b *ReceiptBot) loadState(ctx context.Context, chatID int64) *model.ConversationState {
	st, err := b.states.GetState(ctx, chatID)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			logging.With(ctx, b.log).Warn().Err(err).Msg("load state failed")
		}
		return model.IdleState()
	}
	return st
}

func (b *ReceiptBot) saveState(ctx context.Context, chatID int64, st *model.ConversationState) {
	if err := b.states.SetState(ctx, chatID, st); err != nil {
		logging.With(ctx, b.log).Warn().Err(err).Str("step", string(st.Step)).Msg("save state failed")
	}
}
