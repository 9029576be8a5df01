package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const classifierSystem = `You are a routing classifier for a customer support agent.
Classify the user's message into exactly one of these labels:
login, subscription, reservation, knowledge.

- login: account access, sign-in, password or profile questions
- subscription: membership plan, tier, quota or billing status
- reservation: booking, changing or cancelling an experience
- knowledge: general how-to and policy questions answerable from documentation

Respond with ONLY the label, nothing else.`

const escalationSystem = `You are an escalation assistant for a customer support agent.
Given the user's message and the failure context, produce a short, clear reason
for escalating the conversation to a human. Respond with ONLY the reason sentence.`

const operationsSystem = `You are an action selector for member support operations.
Given the user's message and context, choose exactly one action from:
get_user_profile, get_subscription_status, list_reservations, reserve_experience, cancel_reservation.
Respond ONLY as a JSON object with keys "action" and "args".
Args may include: user_id, experience_id, reservation_id, upcoming_only.`

// RenderClassifierSystem returns the fixed classifier instruction prompt.
func RenderClassifierSystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, classifierSystem)
}

// RenderEscalationSystem returns the escalation-reason instruction prompt.
func RenderEscalationSystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, escalationSystem)
}

// RenderOperationsSystem returns the operation-selection instruction prompt.
func RenderOperationsSystem(ctx context.Context) (string, error) {
	return renderSystem(ctx, operationsSystem)
}

// BuildEscalationUser formats the user side of the escalation-reason call.
func BuildEscalationUser(message, context string, confidence *float64) string {
	var b strings.Builder
	b.WriteString("Message: " + message + "\n")
	b.WriteString("Context: " + context + "\n")
	if confidence != nil {
		fmt.Fprintf(&b, "Confidence: %.3f\n", *confidence)
	}
	return b.String()
}

// renderSystem passes the content through the Eino prompt component so that
// prompt callbacks fire, matching how model calls are observed.
func renderSystem(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("render system prompt: empty result")
	}
	return msgs[0].Content, nil
}
