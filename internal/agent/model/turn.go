package model

// QueryInput represents the input for processing one user message.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// TurnState is the payload flowing along graph edges while a single turn is
// processed. Nodes fill it in as the turn moves through
// classify -> dispatch -> respond.
type TurnState struct {
	ConversationID string
	Query          string

	Intent Intent

	// Reply is the user-facing response text once a handler has produced one.
	Reply string

	// Escalate marks the turn for the escalation handler, with Reason
	// explaining why (handler failure, no record, low retrieval confidence).
	Escalate bool
	Reason   string

	// TicketID is set when the escalation handler opened or reused a ticket.
	TicketID string

	// Confidence carries the knowledge retrieval score when one was computed.
	Confidence float64
	HasScore   bool
}

// AppState stores per-invocation state for the Eino graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler) or compose.ProcessState,
//     which serialize access. No additional locking is required as long as it
//     is never touched outside those.
type AppState struct {
	ConversationID string
	Query          string
	Intent         Intent

	// TicketID is recorded when the escalation handler opened or reused a
	// ticket during the turn, so the persisted turn can reference it.
	TicketID string

	// History is the conversation state loaded at the start of the turn. It
	// does not include the turn in flight.
	History *ConversationState
}

// OpsResult is the outcome of an operations handler execution.
type OpsResult struct {
	// Found is false when the referenced record does not exist; the router
	// converts that into an escalation.
	Found   bool
	Summary string
}

// Escalation is the outcome of the escalation handler. Message is always
// non-empty; TicketID is empty when the ticket store was unreachable.
type Escalation struct {
	TicketID string
	Message  string
}
