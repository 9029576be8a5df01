package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/curiopass/support-agent/internal/agent/model"
)

// TurnManager mediates between the graph and the conversation store: loading
// history for classifier context and recording completed turns.
type TurnManager struct {
	conversationRepo   model.ConversationRepository
	classifierMaxTurns int
}

func NewTurnManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *TurnManager {
	return &TurnManager{
		conversationRepo:   conversationRepo,
		classifierMaxTurns: config.Classifier.MaxTurns,
	}
}

// Load retrieves the conversation state prior to the turn in flight.
func (tm *TurnManager) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	return tm.conversationRepo.Load(ctx, conversationID)
}

// BindUser records the member account the conversation operates on behalf of.
func (tm *TurnManager) BindUser(ctx context.Context, conversationID, userID string) error {
	return tm.conversationRepo.SetScratch(ctx, conversationID, model.ScratchUserID, userID)
}

// BindTicket records an opened ticket so later escalations in the same
// conversation reuse it.
func (tm *TurnManager) BindTicket(ctx context.Context, conversationID, ticketID string) error {
	return tm.conversationRepo.SetScratch(ctx, conversationID, model.ScratchTicketID, ticketID)
}

// BuildClassifierContext renders recent turns plus the current message into
// the user side of the classifier call.
func (tm *TurnManager) BuildClassifierContext(state *model.ConversationState, query string) string {
	recent := trimTail(state.Turns, tm.classifierMaxTurns)

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, t := range recent {
		if t.UserText != "" {
			b.WriteString("UserMessage(" + t.UserText + ")\n")
		}
		if t.Response != "" {
			b.WriteString("AssistantMessage(" + t.Response + ")\n")
		}
	}
	b.WriteString("</conversation_context>\n")
	b.WriteString("<current_message_to_classify>\n")
	b.WriteString("UserMessage(" + query + ")\n")
	b.WriteString("</current_message_to_classify>")
	return b.String()
}

// CompleteTurn appends exactly one finished turn to the conversation. This is
// the only write path for turns, keeping the state append-only.
func (tm *TurnManager) CompleteTurn(ctx context.Context, conversationID string, turn model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	return tm.conversationRepo.AppendTurn(ctx, conversationID, turn)
}

// ====================== Helper function ======================
func trimTail(turns []model.Turn, maxTurns int) []model.Turn {
	if maxTurns <= 0 || len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
