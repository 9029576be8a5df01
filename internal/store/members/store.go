package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	errx "github.com/curiopass/support-agent/internal/core/error"
)

// Store provides member, subscription and reservation records. The rows are
// externally owned; this process reads them and applies single-reservation
// mutations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the members database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open members db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init members schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		is_blocked INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		subscription_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		tier TEXT NOT NULL,
		monthly_quota INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id);

	CREATE TABLE IF NOT EXISTS experiences (
		experience_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		when_at DATETIME NOT NULL,
		slots_available INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reservations (
		reservation_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		experience_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reservations_user ON reservations(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetUserProfile looks up a member account.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	var blocked int
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, full_name, email, is_blocked FROM users WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.FullName, &p.Email, &blocked)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	p.IsBlocked = blocked != 0
	return &p, nil
}

// GetSubscriptionStatus returns the member's subscription with usage computed
// for the month containing now: reservations still in reserved state created
// since the first of the month count against the quota.
func (s *Store) GetSubscriptionStatus(ctx context.Context, userID string, now time.Time) (*SubscriptionStatus, error) {
	var st SubscriptionStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status, tier, monthly_quota FROM subscriptions WHERE user_id = ?`, userID,
	).Scan(&st.Status, &st.Tier, &st.MonthlyQuota)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations
		 WHERE user_id = ? AND status = ? AND created_at >= ?`,
		userID, ReservationReserved, monthStart,
	).Scan(&st.UsedThisMonth)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}

	st.RemainingQuota = st.MonthlyQuota - st.UsedThisMonth
	if st.RemainingQuota < 0 {
		st.RemainingQuota = 0
	}
	return &st, nil
}

// ListReservations returns the member's reservations joined with experience
// details, optionally restricted to upcoming experiences.
func (s *Store) ListReservations(ctx context.Context, userID string, upcomingOnly bool) ([]Reservation, error) {
	q := `SELECT r.reservation_id, e.experience_id, e.title, e.when_at, r.status
	      FROM reservations r
	      JOIN experiences e ON r.experience_id = e.experience_id
	      WHERE r.user_id = ?`
	args := []any{userID}
	if upcomingOnly {
		q += ` AND e.when_at >= ?`
		args = append(args, time.Now().UTC())
	}
	q += ` ORDER BY e.when_at ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ReservationID, &r.ExperienceID, &r.Title, &r.When, &r.Status); err != nil {
			return nil, errx.WrapSQL(err)
		}
		out = append(out, r)
	}
	return out, errx.WrapSQL(rows.Err())
}

// ReserveExperience books one slot of an experience for the member. The member
// must exist and not be blocked, the subscription must be active with remaining
// quota, and the experience must have free slots. Slot decrement and
// reservation insert happen in one transaction.
func (s *Store) ReserveExperience(ctx context.Context, userID, experienceID string) (string, error) {
	profile, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.IsBlocked {
		return "", errx.New(errors.New("user is blocked"), http.StatusForbidden, "account is blocked")
	}

	status, err := s.GetSubscriptionStatus(ctx, userID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if status.Status != SubscriptionActive {
		return "", errx.New(errors.New("subscription inactive"), http.StatusConflict, "subscription is not active")
	}
	if status.RemainingQuota <= 0 {
		return "", errx.New(errors.New("quota exhausted"), http.StatusConflict, "monthly quota exhausted")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errx.WrapSQL(err)
	}
	defer tx.Rollback()

	var slots int
	err = tx.QueryRowContext(ctx,
		`SELECT slots_available FROM experiences WHERE experience_id = ?`, experienceID,
	).Scan(&slots)
	if err != nil {
		return "", errx.WrapSQL(err)
	}
	if slots <= 0 {
		return "", errx.New(errors.New("no slots available"), http.StatusConflict, "experience is fully booked")
	}

	reservationID := uuid.NewString()[:8]
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (reservation_id, user_id, experience_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		reservationID, userID, experienceID, ReservationReserved, time.Now().UTC(),
	); err != nil {
		return "", errx.WrapSQL(err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE experiences SET slots_available = slots_available - 1 WHERE experience_id = ?`,
		experienceID,
	); err != nil {
		return "", errx.WrapSQL(err)
	}

	if err := tx.Commit(); err != nil {
		return "", errx.WrapSQL(err)
	}
	return reservationID, nil
}

// CancelReservation cancels a reserved booking and returns its slot.
func (s *Store) CancelReservation(ctx context.Context, reservationID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapSQL(err)
	}
	defer tx.Rollback()

	var status, experienceID string
	err = tx.QueryRowContext(ctx,
		`SELECT status, experience_id FROM reservations WHERE reservation_id = ? AND user_id = ?`,
		reservationID, userID,
	).Scan(&status, &experienceID)
	if err != nil {
		return errx.WrapSQL(err)
	}
	if status != ReservationReserved {
		return errx.New(errors.New("reservation not active"), http.StatusConflict, "reservation is not active")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE reservation_id = ?`,
		ReservationCancelled, reservationID,
	); err != nil {
		return errx.WrapSQL(err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE experiences SET slots_available = slots_available + 1 WHERE experience_id = ?`,
		experienceID,
	); err != nil {
		return errx.WrapSQL(err)
	}

	return errx.WrapSQL(tx.Commit())
}
