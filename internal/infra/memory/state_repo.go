// Package memory holds the in-process conversation store used when no
// Redis is configured. State is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/model"
	"seu-creysson-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

type entry struct {
	state     model.ConversationState
	expiresAt time.Time
}

type StateRepo struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[int64]entry
	now   func() time.Time
}

func NewStateRepo(ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{ttl: ttl, items: make(map[int64]entry), now: time.Now}
}

func (s *StateRepo) SetState(ctx context.Context, chatID int64, state *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[chatID] = entry{state: *state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *StateRepo) GetState(ctx context.Context, chatID int64) (*model.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[chatID]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, chatID)
		return nil, domain.ErrStateNotFound
	}
	st := e.state
	return &st, nil
}

func (s *StateRepo) ClearState(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, chatID)
	return nil
}

// Sweep drops expired entries; returns how many were removed.
func (s *StateRepo) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *StateRepo) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
