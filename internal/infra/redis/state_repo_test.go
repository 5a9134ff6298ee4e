//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
)

func TestStateRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	repo := NewStateRepo(cli, 10*time.Minute)

	if _, err := repo.GetState(ctx, 7); !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	st := model.NewConversationState(model.StepAwaitingConfirmation)
	st.Summary = model.ReceiptSummary{Payee: "Maria Silva", DueDate: "05/10/2025"}
	if err := repo.SetState(ctx, 7, st); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if ttl := cli.ttls["conv_state:7"]; ttl != 10*time.Minute {
		t.Errorf("expected 10m ttl, got %s", ttl)
	}

	got, err := repo.GetState(ctx, 7)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got.Step != model.StepAwaitingConfirmation || got.Summary != st.Summary {
		t.Errorf("unexpected state %+v", got)
	}

	if err := repo.ClearState(ctx, 7); err != nil {
		t.Fatalf("ClearState: %v", err)
	}
	if _, err := repo.GetState(ctx, 7); !errors.Is(err, domain.ErrStateNotFound) {
		t.Errorf("expected state to be cleared, got %v", err)
	}
}

func TestStateRepoPropagatesBackendErrors(t *testing.T) {
	cli := newMemClient()
	cli.failGet = errors.New("connection refused")
	repo := NewStateRepo(cli, 0)
	_, err := repo.GetState(context.Background(), 1)
	if err == nil || errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	key := ChatKey(42)

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d: expected allowed, got %v %v", i, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil || ok {
		t.Fatalf("expected fourth call to be limited, got %v %v", ok, err)
	}
	if cli.ttls[key] != time.Minute {
		t.Errorf("expected window ttl to be set on first hit, got %s", cli.ttls[key])
	}
	if key != "rate_limit:42" {
		t.Errorf("unexpected key %q", key)
	}
}
