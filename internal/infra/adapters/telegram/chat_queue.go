package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// chatQueue holds the pending updates of every chat that has work in
// flight. A chat is handed to at most one worker at a time, so its updates
// run in arrival order while other chats go to the remaining workers.
type chatQueue struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

func newChatQueue() *chatQueue {
	return &chatQueue{pending: make(map[int64][]tgbotapi.Update)}
}

// push queues up and reports whether the chat was idle, in which case the
// caller must hand the chat to a worker.
func (q *chatQueue) push(chatID int64, up tgbotapi.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	backlog, busy := q.pending[chatID]
	q.pending[chatID] = append(backlog, up)
	return !busy
}

// next pops the oldest update of the chat. When none is left the chat is
// released and ok is false.
func (q *chatQueue) next(chatID int64) (tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	backlog := q.pending[chatID]
	if len(backlog) == 0 {
		delete(q.pending, chatID)
		return tgbotapi.Update{}, false
	}
	q.pending[chatID] = backlog[1:]
	return backlog[0], true
}

func chatOf(up tgbotapi.Update) int64 {
	if chat := up.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}
