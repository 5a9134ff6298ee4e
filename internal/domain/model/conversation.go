package model

import "time"

type Step string

const (
	StepIdle                 Step = "idle"
	StepAwaitingPhoto        Step = "awaiting_photo"
	StepAwaitingSuggestion   Step = "awaiting_suggestion"
	StepAwaitingConfirmation Step = "awaiting_confirmation"
)

// ConversationState is the per-chat progress through the receipt flow.
// Summary is only meaningful while awaiting confirmation.
type ConversationState struct {
	Step      Step           `json:"step"`
	Summary   ReceiptSummary `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewConversationState(step Step) *ConversationState {
	return &ConversationState{Step: step, UpdatedAt: time.Now()}
}

func IdleState() *ConversationState {
	return NewConversationState(StepIdle)
}
