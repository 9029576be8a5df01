package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	logx "github.com/curiopass/support-agent/pkg/logger"
)

// Config configures the optional outbound escalation endpoint. Leaving BaseURL
// empty disables notification entirely.
type Config struct {
	BaseURL        string `envconfig:"ESCALATION_BASE_URL"`
	Token          string `envconfig:"ESCALATION_TOKEN"`
	Path           string `envconfig:"ESCALATION_PATH" default:"/api/escalations"`
	TimeoutSeconds int    `envconfig:"ESCALATION_TIMEOUT" default:"15"`
}

// Event is the payload posted to the escalation endpoint.
type Event struct {
	TicketID       string   `json:"ticket_id"`
	ConversationID string   `json:"conversation_id"`
	Reason         string   `json:"reason"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// Notifier posts escalation events to an external endpoint. Delivery is
// best-effort; callers log failures and carry on.
type Notifier struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.BaseURL != ""
}

// Send posts the event. A nil return with Enabled() == false means the
// notification was skipped, not delivered.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if !n.Enabled() {
		logx.Debug().Str("ticket_id", ev.TicketID).Msg("escalation endpoint not configured, skipping notify")
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal escalation event: %w", err)
	}

	url := strings.TrimRight(n.cfg.BaseURL, "/") + "/" + strings.TrimLeft(n.cfg.Path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build escalation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post escalation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("escalation endpoint returned %d", resp.StatusCode)
	}

	logx.Info().Str("ticket_id", ev.TicketID).Str("url", url).Msg("escalation notified")
	return nil
}
