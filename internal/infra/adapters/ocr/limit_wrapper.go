package ocr

import (
	"context"
	"time"

	"seu-creysson-bot/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.OCREngine = (*limitedOCR)(nil)

// limitedOCR bounds concurrent OCR runs and applies a per-run deadline.
type limitedOCR struct {
	inner   adapter.OCREngine
	sem     chan struct{}
	timeout time.Duration
}

func NewLimitedOCR(inner adapter.OCREngine, maxConcurrent int, timeout time.Duration) adapter.OCREngine {
	if maxConcurrent <= 0 && timeout <= 0 {
		return inner
	}
	l := &limitedOCR{inner: inner, timeout: timeout}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedOCR) Name() string { return l.inner.Name() }

func (l *limitedOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.inner.Recognize(ctx, image)
}
