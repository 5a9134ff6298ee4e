package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
	"seu-creysson-bot/internal/domain/ports/adapter"
	"seu-creysson-bot/internal/infra/logging"
	"seu-creysson-bot/internal/infra/metrics"
)

// Compile-time check
var _ ReceiptUseCase = (*receiptUC)(nil)

type ReceiptUseCase interface {
	// Process runs OCR over the image and extracts the receipt fields.
	// Errors: domain.ErrOCRFailed when the engine fails, domain.ErrNoFields
	// when the text carries none of the labels.
	Process(ctx context.Context, image []byte) (model.ReceiptSummary, error)
}

type receiptUC struct {
	ocr     adapter.OCREngine
	log     *zerolog.Logger
	devMode bool
}

func NewReceiptUseCase(ocr adapter.OCREngine, logger *zerolog.Logger, devMode bool) *receiptUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &receiptUC{ocr: ocr, log: logger, devMode: devMode}
}

func (r *receiptUC) Process(ctx context.Context, image []byte) (model.ReceiptSummary, error) {
	log := logging.With(ctx, r.log)
	defer logging.TraceDuration(log, "ReceiptUC.Process")()

	if len(image) == 0 {
		metrics.IncReceiptProcessed("ocr_failed")
		return model.ReceiptSummary{}, fmt.Errorf("%w: empty image", domain.ErrOCRFailed)
	}

	start := time.Now()
	text, err := r.ocr.Recognize(ctx, image)
	elapsed := time.Since(start)
	metrics.ObserveOCR(r.ocr.Name(), elapsed, err == nil)
	if err != nil {
		metrics.IncReceiptProcessed("ocr_failed")
		log.Warn().Err(err).Str("engine", r.ocr.Name()).Dur("elapsed", elapsed).Msg("ocr failed")
		if errors.Is(err, domain.ErrOCRFailed) {
			return model.ReceiptSummary{}, err
		}
		return model.ReceiptSummary{}, fmt.Errorf("%w: %w", domain.ErrOCRFailed, err)
	}

	summary := ExtractFields(text)
	for _, label := range summary.Matched() {
		metrics.IncFieldMatched(label)
	}
	log.Debug().
		Str("engine", r.ocr.Name()).
		Dur("elapsed", elapsed).
		Int("text_len", len(text)).
		Strs("fields", summary.Matched()).
		Str("text", logging.Redact(text, r.devMode)).
		Msg("receipt text filtered")

	if summary.Empty() {
		metrics.IncReceiptProcessed("no_fields")
		return summary, domain.ErrNoFields
	}
	metrics.IncReceiptProcessed("ok")
	return summary, nil
}
