package parsers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/curiopass/support-agent/internal/agent/model"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxReplyLen = 8 * 1024
	maxArgLen   = 512
)

// ParseIntentLabel maps a raw classifier reply to an Intent. The model is
// instructed to answer with a bare label; anything else resolves to unknown,
// never to an error.
func ParseIntentLabel(reply string) model.Intent {
	if len(reply) > maxReplyLen {
		reply = reply[:maxReplyLen]
	}
	fields := strings.Fields(strings.TrimSpace(reply))
	if len(fields) == 0 {
		return model.IntentUnknown
	}
	label := strings.ToLower(strings.Trim(fields[0], `"'.,:;!`+"`"))
	switch model.Intent(label) {
	case model.IntentLogin:
		return model.IntentLogin
	case model.IntentSubscription:
		return model.IntentSubscription
	case model.IntentReservation:
		return model.IntentReservation
	case model.IntentKnowledge:
		return model.IntentKnowledge
	}
	logx.Debug().Str("label", label).Msg("unrecognized classifier label")
	return model.IntentUnknown
}

// OperationCall is a parsed operation selection from the composer model.
type OperationCall struct {
	Action string            `json:"action"`
	Args   map[string]string `json:"args"`
}

// operation names the selector may choose from
var knownOperations = map[string]struct{}{
	"get_user_profile":        {},
	"get_subscription_status": {},
	"list_reservations":       {},
	"reserve_experience":      {},
	"cancel_reservation":      {},
}

// ParseOperationCall decodes the selector's JSON reply, tolerating markdown
// code fences. Unknown actions and malformed JSON are errors; the caller falls
// back to a default operation.
func ParseOperationCall(reply string) (*OperationCall, error) {
	if len(reply) > maxReplyLen {
		return nil, fmt.Errorf("operation reply too large")
	}
	raw := stripCodeFence(strings.TrimSpace(reply))

	var decoded struct {
		Action string         `json:"action"`
		Args   map[string]any `json:"args"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode operation call: %w", err)
	}

	action := strings.ToLower(strings.TrimSpace(decoded.Action))
	if _, ok := knownOperations[action]; !ok {
		return nil, fmt.Errorf("unknown operation %q", decoded.Action)
	}

	call := &OperationCall{Action: action, Args: map[string]string{}}
	for k, v := range decoded.Args {
		s := strings.TrimSpace(fmt.Sprint(v))
		if len(s) > maxArgLen {
			return nil, fmt.Errorf("operation arg %q too large", k)
		}
		call.Args[k] = s
	}
	return call, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop an optional language tag on the fence line
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
