package helpdesk

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	errx "github.com/curiopass/support-agent/internal/core/error"
)

// Store persists tickets and their message transcripts.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the helpdesk database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open helpdesk db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init helpdesk schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tickets (
		ticket_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(user_id);

	CREATE TABLE IF NOT EXISTS ticket_messages (
		message_id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ticket_messages_ticket ON ticket_messages(ticket_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateTicket opens a new ticket and returns its id.
func (s *Store) CreateTicket(ctx context.Context, userID, subject string) (string, error) {
	ticketID := uuid.NewString()[:8]
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (ticket_id, user_id, subject, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ticketID, userID, subject, StatusOpen, now, now,
	)
	if err != nil {
		return "", errx.WrapSQL(err)
	}
	return ticketID, nil
}

// GetTicket looks up a ticket by id.
func (s *Store) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	var t Ticket
	err := s.db.QueryRowContext(ctx,
		`SELECT ticket_id, user_id, subject, status, created_at, updated_at
		 FROM tickets WHERE ticket_id = ?`, ticketID,
	).Scan(&t.TicketID, &t.UserID, &t.Subject, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	return &t, nil
}

// AppendMessage adds one entry to a ticket transcript.
func (s *Store) AppendMessage(ctx context.Context, ticketID, role, content string) (string, error) {
	messageID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_messages (message_id, ticket_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		messageID, ticketID, role, content, time.Now().UTC(),
	)
	if err != nil {
		return "", errx.WrapSQL(err)
	}
	return messageID, nil
}

// History returns the ticket transcript in chronological order.
func (s *Store) History(ctx context.Context, ticketID string) ([]TicketMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, ticket_id, role, content, created_at
		 FROM ticket_messages WHERE ticket_id = ? ORDER BY created_at ASC`, ticketID,
	)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	var out []TicketMessage
	for rows.Next() {
		var m TicketMessage
		if err := rows.Scan(&m.MessageID, &m.TicketID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, errx.WrapSQL(err)
		}
		out = append(out, m)
	}
	return out, errx.WrapSQL(rows.Err())
}

// EscalateTicket marks a ticket escalated and records the reason (and the
// retrieval confidence when one was computed) as a system message.
func (s *Store) EscalateTicket(ctx context.Context, ticketID, reason string, confidence *float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE ticket_id = ?`,
		StatusEscalated, time.Now().UTC(), ticketID,
	)
	if err != nil {
		return errx.WrapSQL(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errx.WrapSQL(sql.ErrNoRows)
	}

	content := fmt.Sprintf("Escalated: %s", reason)
	if confidence != nil {
		content = fmt.Sprintf("Escalated: %s (confidence=%.3f)", reason, *confidence)
	}
	_, err = s.AppendMessage(ctx, ticketID, RoleSystem, content)
	return err
}
