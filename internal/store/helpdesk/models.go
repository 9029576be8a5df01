package helpdesk

import "time"

// Ticket is a human-handoff case owned by the helpdesk.
type Ticket struct {
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketMessage is one entry in a ticket's transcript.
type TicketMessage struct {
	MessageID string    `json:"message_id"`
	TicketID  string    `json:"ticket_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Ticket lifecycle states.
const (
	StatusOpen      = "open"
	StatusEscalated = "escalated"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
