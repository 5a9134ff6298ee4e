//go:build !integration

package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type slowOCR struct {
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (s *slowOCR) Name() string { return "slow" }

func (s *slowOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestLimitedOCRBoundsConcurrency(t *testing.T) {
	inner := &slowOCR{delay: 20 * time.Millisecond}
	l := NewLimitedOCR(inner, 2, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Recognize(context.Background(), []byte("x")); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := atomic.LoadInt32(&inner.peak); peak > 2 {
		t.Errorf("expected at most 2 concurrent runs, saw %d", peak)
	}
	if l.Name() != "slow" {
		t.Errorf("expected wrapped name, got %q", l.Name())
	}
}

func TestLimitedOCRTimeout(t *testing.T) {
	l := NewLimitedOCR(&slowOCR{delay: time.Second}, 1, 10*time.Millisecond)
	_, err := l.Recognize(context.Background(), []byte("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLimitedOCRPassthrough(t *testing.T) {
	inner := &slowOCR{}
	if got := NewLimitedOCR(inner, 0, 0); got != inner {
		t.Error("expected inner engine when no limits are set")
	}
}
