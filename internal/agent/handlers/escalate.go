package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/curiopass/support-agent/internal/agent/graph/prompts"
	"github.com/curiopass/support-agent/internal/agent/llm"
	"github.com/curiopass/support-agent/internal/agent/model"
	"github.com/curiopass/support-agent/internal/notify"
	"github.com/curiopass/support-agent/internal/store/helpdesk"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// TicketDesk is the slice of the helpdesk store the escalation handler needs.
// *helpdesk.Store satisfies it.
type TicketDesk interface {
	CreateTicket(ctx context.Context, userID, subject string) (string, error)
	AppendMessage(ctx context.Context, ticketID, role, content string) (string, error)
	EscalateTicket(ctx context.Context, ticketID, reason string, confidence *float64) error
}

// Notifier delivers escalation events to an optional external endpoint.
type Notifier interface {
	Send(ctx context.Context, ev notify.Event) error
}

const (
	fallbackReason = "Escalation required: automated handling could not resolve the request."

	// apologyMessage is the terminal failure mode: the ticket store itself is
	// unreachable and there is no further escalation path.
	apologyMessage = "I'm sorry, I wasn't able to reach our support system just now. " +
		"Please try again in a few minutes or contact support directly."
)

// EscalationHandler hands a conversation off to human support: it opens (or
// reuses) a ticket, records the reason, pings the external endpoint and
// returns the handoff message. It never returns an error; every failure path
// still produces a user-facing message.
type EscalationHandler struct {
	desk     TicketDesk
	notifier Notifier
	composer llm.Completer
}

func NewEscalationHandler(desk TicketDesk, notifier Notifier, composer llm.Completer) *EscalationHandler {
	return &EscalationHandler{desk: desk, notifier: notifier, composer: composer}
}

// Escalate performs the handoff for the given turn. reason describes why the
// router escalated; confidence carries the retrieval score when one exists.
func (h *EscalationHandler) Escalate(ctx context.Context, conv *model.ConversationState, query, reason string, confidence *float64) model.Escalation {
	reason = h.composeReason(ctx, query, reason, confidence)

	ticketID := conv.TicketID()
	if ticketID == "" {
		var err error
		ticketID, err = h.desk.CreateTicket(ctx, conv.UserID(), subjectFrom(query))
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", conv.ConversationID).Msg("failed to create ticket")
			return model.Escalation{Message: apologyMessage}
		}
	}

	if _, err := h.desk.AppendMessage(ctx, ticketID, helpdesk.RoleUser, query); err != nil {
		logx.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to append user message to ticket")
		return model.Escalation{Message: apologyMessage}
	}
	if err := h.desk.EscalateTicket(ctx, ticketID, reason, confidence); err != nil {
		logx.Error().Err(err).Str("ticket_id", ticketID).Msg("failed to mark ticket escalated")
		return model.Escalation{Message: apologyMessage}
	}

	// External notification is best-effort; the ticket already records the case.
	if h.notifier != nil {
		if err := h.notifier.Send(ctx, notify.Event{
			TicketID:       ticketID,
			ConversationID: conv.ConversationID,
			Reason:         reason,
			Confidence:     confidence,
		}); err != nil {
			logx.Warn().Err(err).Str("ticket_id", ticketID).Msg("escalation notification failed")
		}
	}

	logx.Info().Str("ticket_id", ticketID).Str("conversation_id", conv.ConversationID).
		Str("reason", reason).Msg("conversation escalated")
	return model.Escalation{
		TicketID: ticketID,
		Message: fmt.Sprintf(
			"I've escalated this to our support team (ticket %s). A human agent will follow up shortly.",
			ticketID,
		),
	}
}

// composeReason asks the composer model for a one-sentence reason; any failure
// keeps the router's reason, or the fixed fallback when there is none.
func (h *EscalationHandler) composeReason(ctx context.Context, query, routerReason string, confidence *float64) string {
	def := routerReason
	if strings.TrimSpace(def) == "" {
		def = fallbackReason
	}
	if h.composer == nil {
		return def
	}

	system, err := prompts.RenderEscalationSystem(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to render escalation prompt")
		return def
	}

	reply, err := h.composer.Complete(ctx, system, prompts.BuildEscalationUser(query, routerReason, confidence))
	if err != nil {
		logx.Warn().Err(err).Msg("escalation reason call failed, using fallback reason")
		return def
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return def
	}
	return reply
}

func subjectFrom(query string) string {
	subject := strings.TrimSpace(query)
	if subject == "" {
		return "Support request"
	}
	if len(subject) > 80 {
		subject = subject[:80] + "..."
	}
	return subject
}
