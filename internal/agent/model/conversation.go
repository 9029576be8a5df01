package model

import (
	"context"
	"time"
)

// Turn is one completed exchange: the user's message, the intent it was
// resolved to, and the final agent response. A turn is only recorded once all
// three are known.
type Turn struct {
	UserText  string    `json:"user_text"`
	Intent    Intent    `json:"intent"`
	Response  string    `json:"response"`
	TicketID  string    `json:"ticket_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the persisted record of a conversation: its ordered
// turns plus free-form scratch fields used by handlers (e.g. the bound user id).
type ConversationState struct {
	ConversationID string
	Turns          []Turn
	Scratch        map[string]string
}

// ScratchUserID is the scratch key binding a conversation to a member account.
const ScratchUserID = "user_id"

// ScratchTicketID is the scratch key carrying an already-opened ticket for the
// conversation, so repeated escalations reuse it.
const ScratchTicketID = "ticket_id"

// UserID returns the member bound to the conversation, or "" when unbound.
func (s *ConversationState) UserID() string {
	if s == nil || s.Scratch == nil {
		return ""
	}
	return s.Scratch[ScratchUserID]
}

// TicketID returns the open ticket bound to the conversation, or "".
func (s *ConversationState) TicketID() string {
	if s == nil || s.Scratch == nil {
		return ""
	}
	return s.Scratch[ScratchTicketID]
}

// ConversationRepository persists conversation state keyed by conversation id.
// Turns are append-only and applied in arrival order.
type ConversationRepository interface {
	// AppendTurn records one completed turn at the end of the conversation.
	AppendTurn(ctx context.Context, conversationID string, turn Turn) error

	// Load retrieves the full conversation state. A conversation that has never
	// been written returns an empty state, not an error.
	Load(ctx context.Context, conversationID string) (*ConversationState, error)

	// SetScratch stores a scratch field on the conversation.
	SetScratch(ctx context.Context, conversationID, key, value string) error

	// TurnCount returns the number of recorded turns.
	TurnCount(ctx context.Context, conversationID string) (int, error)
}
