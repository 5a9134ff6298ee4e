package repository

import (
	"context"

	"seu-creysson-bot/internal/domain/model"
)

// StateRepository is the port for per-chat conversational state.
// GetState returns domain.ErrStateNotFound when nothing is stored or the
// entry expired.
type StateRepository interface {
	SetState(ctx context.Context, chatID int64, state *model.ConversationState) error
	GetState(ctx context.Context, chatID int64) (*model.ConversationState, error)
	ClearState(ctx context.Context, chatID int64) error
}
