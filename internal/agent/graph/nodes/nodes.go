package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/curiopass/support-agent/internal/agent/graph/conversations"
	"github.com/curiopass/support-agent/internal/agent/graph/parsers"
	"github.com/curiopass/support-agent/internal/agent/graph/prompts"
	"github.com/curiopass/support-agent/internal/agent/llm"
	"github.com/curiopass/support-agent/internal/agent/model"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Graph node names.
const (
	NodeContextLoader    = "ContextLoader"
	NodeIntentClassifier = "IntentClassifier"
	NodeMemberOps        = "MemberOps"
	NodeKnowledge        = "KnowledgeResolver"
	NodeEscalation       = "Escalation"
	NodeResponder        = "Responder"
)

// OperationsExecutor serves login/subscription/reservation turns.
type OperationsExecutor interface {
	Execute(ctx context.Context, intent model.Intent, conv *model.ConversationState, query string) (model.OpsResult, error)
}

// KnowledgeResolver answers knowledge turns from the corpus.
type KnowledgeResolver interface {
	Resolve(query string) (reply string, score float64, ok bool)
}

// Escalator hands the conversation off to human support. It never fails; the
// worst case is an apology message without a ticket id.
type Escalator interface {
	Escalate(ctx context.Context, conv *model.ConversationState, query, reason string, confidence *float64) model.Escalation
}

// NewContextLoaderPreHandler seeds the per-turn graph state.
func NewContextLoaderPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.Intent = ""
		s.TicketID = ""
		s.History = nil
		return in, nil
	}
}

// NewContextLoaderNode loads the conversation state for the turn. A store
// failure degrades to an empty history instead of failing the turn; handlers
// that need a member binding will escalate on their own.
func NewContextLoaderNode(tm *conversations.TurnManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (*model.TurnState, error) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, fmt.Errorf("empty query for conversation %s", input.ConversationID)
		}

		history, err := tm.Load(ctx, input.ConversationID)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", input.ConversationID).
				Msg("failed to load conversation state, continuing with empty history")
			history = &model.ConversationState{
				ConversationID: input.ConversationID,
				Scratch:        map[string]string{},
			}
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.History = history
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return &model.TurnState{
			ConversationID: input.ConversationID,
			Query:          input.Query,
		}, nil
	})
}

// NewClassifierNode classifies the turn with one completion call. Any model or
// transport failure silently resolves to the unknown intent; classification
// never fails a turn.
func NewClassifierNode(classifier llm.Completer, tm *conversations.TurnManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.TurnState) (*model.TurnState, error) {
		var history *model.ConversationState
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			history = state.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		t.Intent = model.IntentUnknown
		t.Reason = "the request could not be classified automatically"

		system, err := prompts.RenderClassifierSystem(ctx)
		if err != nil {
			logx.Error().Err(err).Msg("failed to render classifier prompt")
			return t, nil
		}

		reply, err := classifier.Complete(ctx, system, tm.BuildClassifierContext(history, t.Query))
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", t.ConversationID).
				Msg("classification call failed, falling back to unknown intent")
			return t, nil
		}

		if intent := parsers.ParseIntentLabel(reply); intent.Known() {
			t.Intent = intent
			t.Reason = ""
		}
		return t, nil
	})
}

// NewClassifierPostHandler records the resolved intent in graph state.
func NewClassifierPostHandler() func(context.Context, *model.TurnState, *model.AppState) (*model.TurnState, error) {
	return func(ctx context.Context, t *model.TurnState, state *model.AppState) (*model.TurnState, error) {
		state.Intent = t.Intent
		logx.Debug().
			Str("conversation_id", t.ConversationID).
			Str("intent", t.Intent.String()).
			Msg("intent classified")
		return t, nil
	}
}

// NewIntentCondition routes a classified turn to its handler:
// login/subscription/reservation to member operations, knowledge to the
// resolver, unknown straight to escalation.
func NewIntentCondition() func(context.Context, *model.TurnState) (string, error) {
	return func(ctx context.Context, t *model.TurnState) (string, error) {
		switch t.Intent {
		case model.IntentLogin, model.IntentSubscription, model.IntentReservation:
			return NodeMemberOps, nil
		case model.IntentKnowledge:
			return NodeKnowledge, nil
		default:
			return NodeEscalation, nil
		}
	}
}

// NewMemberOpsNode executes the member-record operation for the turn. Handler
// errors and missing records are converted to escalations, not failures.
func NewMemberOpsNode(ops OperationsExecutor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.TurnState) (*model.TurnState, error) {
		var history *model.ConversationState
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			history = state.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		result, err := ops.Execute(ctx, t.Intent, history, t.Query)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", t.ConversationID).
				Str("intent", t.Intent.String()).Msg("operations handler failed")
			t.Escalate = true
			t.Reason = "the requested account operation failed"
			return t, nil
		}
		if !result.Found {
			t.Escalate = true
			t.Reason = result.Summary
			if t.Reason == "" {
				t.Reason = "no matching record was found"
			}
			return t, nil
		}

		t.Reply = result.Summary
		return t, nil
	})
}

// NewKnowledgeNode answers from the corpus or marks the turn for escalation
// when no article clears the confidence threshold.
func NewKnowledgeNode(resolver KnowledgeResolver) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.TurnState) (*model.TurnState, error) {
		reply, score, ok := resolver.Resolve(t.Query)
		t.Confidence = score
		t.HasScore = true
		if !ok {
			t.Escalate = true
			t.Reason = "no knowledge-base article matched with sufficient confidence"
			return t, nil
		}
		t.Reply = reply
		return t, nil
	})
}

// NewDispatchCondition routes a handled turn onward: to escalation when the
// handler gave up, otherwise to the responder.
func NewDispatchCondition() func(context.Context, *model.TurnState) (string, error) {
	return func(ctx context.Context, t *model.TurnState) (string, error) {
		if t.Escalate {
			logx.Debug().Str("conversation_id", t.ConversationID).Str("reason", t.Reason).
				Msg("routing to escalation")
			return NodeEscalation, nil
		}
		return NodeResponder, nil
	}
}

// NewEscalationNode performs the human handoff and binds the resulting ticket
// to the conversation so later escalations reuse it.
func NewEscalationNode(esc Escalator, tm *conversations.TurnManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.TurnState) (*model.TurnState, error) {
		var history *model.ConversationState
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			history = state.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		var confidence *float64
		if t.HasScore {
			confidence = &t.Confidence
		}

		e := esc.Escalate(ctx, history, t.Query, t.Reason, confidence)
		t.Reply = e.Message
		t.TicketID = e.TicketID

		if e.TicketID != "" {
			if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
				state.TicketID = e.TicketID
				return nil
			}); err != nil {
				return nil, fmt.Errorf("failed to access state: %w", err)
			}
			if history.TicketID() == "" {
				if err := tm.BindTicket(ctx, t.ConversationID, e.TicketID); err != nil {
					logx.Error().Err(err).Str("conversation_id", t.ConversationID).
						Str("ticket_id", e.TicketID).Msg("failed to bind ticket to conversation")
				}
			}
		}
		return t, nil
	})
}

// NewResponderNode converts the handled turn into the final assistant message.
func NewResponderNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.TurnState) (*schema.Message, error) {
		if strings.TrimSpace(t.Reply) == "" {
			return nil, fmt.Errorf("turn for conversation %s produced no reply", t.ConversationID)
		}

		out := schema.AssistantMessage(t.Reply, nil)
		out.Extra = map[string]any{
			"intent": t.Intent.String(),
		}
		if t.TicketID != "" {
			out.Extra["ticket_id"] = t.TicketID
		}
		if t.HasScore {
			out.Extra["kb_score"] = t.Confidence
		}
		return out, nil
	})
}

// NewResponderPostHandler persists the completed turn. Persistence failures are
// logged and never surfaced to the user; the reply already exists.
func NewResponderPostHandler(tm *conversations.TurnManager) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		turn := model.Turn{
			UserText: state.Query,
			Intent:   state.Intent,
			Response: out.Content,
			TicketID: state.TicketID,
		}
		if err := tm.CompleteTurn(ctx, state.ConversationID, turn); err != nil {
			logx.Error().Err(err).Str("conversation_id", state.ConversationID).
				Msg("failed to persist turn")
		} else {
			logx.Debug().Str("conversation_id", state.ConversationID).
				Str("intent", state.Intent.String()).Msg("turn persisted")
		}
		return out, nil
	}
}
