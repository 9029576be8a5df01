package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/curiopass/support-agent/internal/agent/graph/parsers"
	"github.com/curiopass/support-agent/internal/agent/graph/prompts"
	"github.com/curiopass/support-agent/internal/agent/llm"
	"github.com/curiopass/support-agent/internal/agent/model"
	errx "github.com/curiopass/support-agent/internal/core/error"
	"github.com/curiopass/support-agent/internal/store/members"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// MemberDirectory is the slice of the members store the operations handler
// needs. *members.Store satisfies it.
type MemberDirectory interface {
	GetUserProfile(ctx context.Context, userID string) (*members.UserProfile, error)
	GetSubscriptionStatus(ctx context.Context, userID string, now time.Time) (*members.SubscriptionStatus, error)
	ListReservations(ctx context.Context, userID string, upcomingOnly bool) ([]members.Reservation, error)
	ReserveExperience(ctx context.Context, userID, experienceID string) (string, error)
	CancelReservation(ctx context.Context, reservationID, userID string) error
}

// OperationsHandler serves the login, subscription and reservation intents
// against member records. Login and subscription map to fixed lookups;
// reservation requests go through the composer model to pick one of the five
// member operations, falling back to listing reservations when selection fails.
type OperationsHandler struct {
	dir      MemberDirectory
	selector llm.Completer
}

func NewOperationsHandler(dir MemberDirectory, selector llm.Completer) *OperationsHandler {
	return &OperationsHandler{dir: dir, selector: selector}
}

// Execute runs the operation for the classified intent. A missing record comes
// back as Found == false, never as an error; errors are reserved for store
// failures, which the router converts into an escalation.
func (h *OperationsHandler) Execute(ctx context.Context, intent model.Intent, conv *model.ConversationState, query string) (model.OpsResult, error) {
	userID := conv.UserID()
	if userID == "" {
		logx.Warn().Str("conversation_id", conv.ConversationID).Msg("no member bound to conversation")
		return model.OpsResult{Found: false, Summary: "no member account is linked to this conversation"}, nil
	}

	switch intent {
	case model.IntentLogin:
		return h.accountLookup(ctx, userID)
	case model.IntentSubscription:
		return h.subscriptionStatus(ctx, userID)
	case model.IntentReservation:
		return h.reservationAction(ctx, userID, conv, query)
	default:
		return model.OpsResult{}, fmt.Errorf("operations handler cannot serve intent %q", intent)
	}
}

func (h *OperationsHandler) accountLookup(ctx context.Context, userID string) (model.OpsResult, error) {
	profile, err := h.dir.GetUserProfile(ctx, userID)
	if err != nil {
		if errx.IsNotFound(err) {
			return model.OpsResult{Found: false, Summary: "no account record found"}, nil
		}
		return model.OpsResult{}, err
	}

	summary := fmt.Sprintf("Your account: %s (%s).", profile.FullName, profile.Email)
	if profile.IsBlocked {
		summary += " Note: the account is currently blocked; please contact support to unblock it."
	}
	return model.OpsResult{Found: true, Summary: summary}, nil
}

func (h *OperationsHandler) subscriptionStatus(ctx context.Context, userID string) (model.OpsResult, error) {
	status, err := h.dir.GetSubscriptionStatus(ctx, userID, time.Now().UTC())
	if err != nil {
		if errx.IsNotFound(err) {
			return model.OpsResult{Found: false, Summary: "no subscription record found"}, nil
		}
		return model.OpsResult{}, err
	}

	summary := fmt.Sprintf(
		"Your subscription is %s (%s tier): %d of %d experiences used this month, %d remaining.",
		status.Status, status.Tier, status.UsedThisMonth, status.MonthlyQuota, status.RemainingQuota,
	)
	return model.OpsResult{Found: true, Summary: summary}, nil
}

func (h *OperationsHandler) reservationAction(ctx context.Context, userID string, conv *model.ConversationState, query string) (model.OpsResult, error) {
	call := h.selectOperation(ctx, userID, query)

	switch call.Action {
	case "get_user_profile":
		return h.accountLookup(ctx, userID)
	case "get_subscription_status":
		return h.subscriptionStatus(ctx, userID)
	case "reserve_experience":
		experienceID := firstNonEmpty(call.Args["experience_id"], conv.Scratch["experience_id"])
		if experienceID == "" {
			return h.listReservations(ctx, userID, "I couldn't tell which experience to book, so here are your reservations.")
		}
		reservationID, err := h.dir.ReserveExperience(ctx, userID, experienceID)
		if err != nil {
			if errx.IsNotFound(err) {
				return model.OpsResult{Found: false, Summary: "the requested experience was not found"}, nil
			}
			return model.OpsResult{}, err
		}
		return model.OpsResult{
			Found:   true,
			Summary: fmt.Sprintf("Done, you're booked. Your reservation id is %s.", reservationID),
		}, nil
	case "cancel_reservation":
		reservationID := firstNonEmpty(call.Args["reservation_id"], conv.Scratch["reservation_id"])
		if reservationID == "" {
			return h.listReservations(ctx, userID, "I couldn't tell which reservation to cancel, so here are your reservations.")
		}
		if err := h.dir.CancelReservation(ctx, reservationID, userID); err != nil {
			if errx.IsNotFound(err) {
				return model.OpsResult{Found: false, Summary: "no matching reservation found"}, nil
			}
			return model.OpsResult{}, err
		}
		return model.OpsResult{
			Found:   true,
			Summary: fmt.Sprintf("Reservation %s has been cancelled and the slot returned.", reservationID),
		}, nil
	default: // list_reservations
		return h.listReservations(ctx, userID, "")
	}
}

// selectOperation asks the composer model to pick one operation. Any failure
// degrades to listing reservations, the safest read-only default.
func (h *OperationsHandler) selectOperation(ctx context.Context, userID, query string) *parsers.OperationCall {
	fallback := &parsers.OperationCall{Action: "list_reservations", Args: map[string]string{}}

	system, err := prompts.RenderOperationsSystem(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to render operations prompt")
		return fallback
	}

	user := fmt.Sprintf("User message: %s\nContext: user_id=%s\n", query, userID)
	reply, err := h.selector.Complete(ctx, system, user)
	if err != nil {
		logx.Warn().Err(err).Msg("operation selection call failed, defaulting to list_reservations")
		return fallback
	}

	call, err := parsers.ParseOperationCall(reply)
	if err != nil {
		logx.Warn().Err(err).Str("reply", truncate(reply, 200)).Msg("unparseable operation selection, defaulting to list_reservations")
		return fallback
	}
	return call
}

func (h *OperationsHandler) listReservations(ctx context.Context, userID, prefix string) (model.OpsResult, error) {
	reservations, err := h.dir.ListReservations(ctx, userID, true)
	if err != nil {
		return model.OpsResult{}, err
	}
	if len(reservations) == 0 {
		return model.OpsResult{Found: true, Summary: strings.TrimSpace(prefix + " You have no upcoming reservations.")}, nil
	}

	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix + "\n")
	}
	b.WriteString("Your upcoming reservations:\n")
	for _, r := range reservations {
		fmt.Fprintf(&b, "- %s on %s (%s, id %s)\n", r.Title, r.When.Format("2006-01-02 15:04"), r.Status, r.ReservationID)
	}
	return model.OpsResult{Found: true, Summary: strings.TrimRight(b.String(), "\n")}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
