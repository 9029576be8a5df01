package members

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errx "github.com/curiopass/support-agent/internal/core/error"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, userID string, blocked bool) {
	t.Helper()
	b := 0
	if blocked {
		b = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO users (user_id, full_name, email, is_blocked) VALUES (?, ?, ?, ?)`,
		userID, "Test Member", userID+"@example.com", b,
	)
	require.NoError(t, err)
}

func seedSubscription(t *testing.T, s *Store, userID, status, tier string, quota int) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (subscription_id, user_id, status, tier, monthly_quota) VALUES (?, ?, ?, ?, ?)`,
		"sub-"+userID, userID, status, tier, quota,
	)
	require.NoError(t, err)
}

func seedExperience(t *testing.T, s *Store, experienceID, title string, when time.Time, slots int) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO experiences (experience_id, title, when_at, slots_available) VALUES (?, ?, ?, ?)`,
		experienceID, title, when, slots,
	)
	require.NoError(t, err)
}

func seedReservation(t *testing.T, s *Store, reservationID, userID, experienceID, status string, createdAt time.Time) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO reservations (reservation_id, user_id, experience_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		reservationID, userID, experienceID, status, createdAt,
	)
	require.NoError(t, err)
}

func TestGetUserProfile(t *testing.T) {
	s := openTestStore(t)
	seedUser(t, s, "user-1", false)

	p, err := s.GetUserProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", p.UserID)
	require.Equal(t, "Test Member", p.FullName)
	require.False(t, p.IsBlocked)
}

func TestGetUserProfileNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetUserProfile(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, errx.IsNotFound(err))
}

func TestGetSubscriptionStatusComputesMonthlyUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	seedUser(t, s, "user-1", false)
	seedSubscription(t, s, "user-1", "active", "basic", 3)
	seedExperience(t, s, "exp-1", "Wine tasting", now.AddDate(0, 0, 5), 10)

	// one reservation this month, one cancelled, one from last month
	seedReservation(t, s, "r1", "user-1", "exp-1", ReservationReserved, now.AddDate(0, 0, -2))
	seedReservation(t, s, "r2", "user-1", "exp-1", ReservationCancelled, now.AddDate(0, 0, -3))
	seedReservation(t, s, "r3", "user-1", "exp-1", ReservationReserved, now.AddDate(0, -1, 0))

	st, err := s.GetSubscriptionStatus(ctx, "user-1", now)
	require.NoError(t, err)
	require.Equal(t, "active", st.Status)
	require.Equal(t, "basic", st.Tier)
	require.Equal(t, 3, st.MonthlyQuota)
	require.Equal(t, 1, st.UsedThisMonth)
	require.Equal(t, 2, st.RemainingQuota)
}

func TestGetSubscriptionStatusRemainingNeverNegative(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	seedSubscription(t, s, "user-1", "active", "basic", 1)
	seedReservation(t, s, "r1", "user-1", "exp-1", ReservationReserved, now.AddDate(0, 0, -1))
	seedReservation(t, s, "r2", "user-1", "exp-1", ReservationReserved, now.AddDate(0, 0, -2))

	st, err := s.GetSubscriptionStatus(context.Background(), "user-1", now)
	require.NoError(t, err)
	require.Equal(t, 2, st.UsedThisMonth)
	require.Equal(t, 0, st.RemainingQuota)
}

func TestListReservations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedExperience(t, s, "exp-past", "Old show", now.AddDate(0, 0, -7), 0)
	seedExperience(t, s, "exp-next", "Next show", now.AddDate(0, 0, 7), 5)
	seedReservation(t, s, "r1", "user-1", "exp-past", ReservationReserved, now.AddDate(0, 0, -8))
	seedReservation(t, s, "r2", "user-1", "exp-next", ReservationReserved, now.AddDate(0, 0, -1))

	all, err := s.ListReservations(ctx, "user-1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "r1", all[0].ReservationID) // ordered by experience time

	upcoming, err := s.ListReservations(ctx, "user-1", true)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.Equal(t, "r2", upcoming[0].ReservationID)
	require.Equal(t, "Next show", upcoming[0].Title)
}

func TestReserveExperience(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", false)
	seedSubscription(t, s, "user-1", "active", "basic", 3)
	seedExperience(t, s, "exp-1", "Wine tasting", time.Now().UTC().AddDate(0, 0, 3), 2)

	reservationID, err := s.ReserveExperience(ctx, "user-1", "exp-1")
	require.NoError(t, err)
	require.NotEmpty(t, reservationID)

	var slots int
	require.NoError(t, s.db.QueryRow(
		`SELECT slots_available FROM experiences WHERE experience_id = ?`, "exp-1",
	).Scan(&slots))
	require.Equal(t, 1, slots)

	st, err := s.GetSubscriptionStatus(ctx, "user-1", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 1, st.UsedThisMonth)
}

func TestReserveExperienceGuards(t *testing.T) {
	ctx := context.Background()
	when := time.Now().UTC().AddDate(0, 0, 3)

	t.Run("blocked user", func(t *testing.T) {
		s := openTestStore(t)
		seedUser(t, s, "user-1", true)
		seedSubscription(t, s, "user-1", "active", "basic", 3)
		seedExperience(t, s, "exp-1", "Show", when, 5)

		_, err := s.ReserveExperience(ctx, "user-1", "exp-1")
		require.Error(t, err)
		require.Contains(t, errx.Message(err), "blocked")
	})

	t.Run("inactive subscription", func(t *testing.T) {
		s := openTestStore(t)
		seedUser(t, s, "user-1", false)
		seedSubscription(t, s, "user-1", "paused", "basic", 3)
		seedExperience(t, s, "exp-1", "Show", when, 5)

		_, err := s.ReserveExperience(ctx, "user-1", "exp-1")
		require.Error(t, err)
		require.Contains(t, errx.Message(err), "not active")
	})

	t.Run("quota exhausted", func(t *testing.T) {
		s := openTestStore(t)
		seedUser(t, s, "user-1", false)
		seedSubscription(t, s, "user-1", "active", "basic", 1)
		seedExperience(t, s, "exp-1", "Show", when, 5)
		seedReservation(t, s, "r1", "user-1", "exp-1", ReservationReserved, time.Now().UTC())

		_, err := s.ReserveExperience(ctx, "user-1", "exp-1")
		require.Error(t, err)
		require.Contains(t, errx.Message(err), "quota")
	})

	t.Run("no slots", func(t *testing.T) {
		s := openTestStore(t)
		seedUser(t, s, "user-1", false)
		seedSubscription(t, s, "user-1", "active", "basic", 3)
		seedExperience(t, s, "exp-1", "Show", when, 0)

		_, err := s.ReserveExperience(ctx, "user-1", "exp-1")
		require.Error(t, err)
		require.Contains(t, errx.Message(err), "fully booked")
	})

	t.Run("unknown experience", func(t *testing.T) {
		s := openTestStore(t)
		seedUser(t, s, "user-1", false)
		seedSubscription(t, s, "user-1", "active", "basic", 3)

		_, err := s.ReserveExperience(ctx, "user-1", "exp-missing")
		require.Error(t, err)
		require.True(t, errx.IsNotFound(err))
	})
}

func TestCancelReservation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "user-1", false)
	seedSubscription(t, s, "user-1", "active", "basic", 3)
	seedExperience(t, s, "exp-1", "Show", time.Now().UTC().AddDate(0, 0, 3), 5)

	reservationID, err := s.ReserveExperience(ctx, "user-1", "exp-1")
	require.NoError(t, err)

	require.NoError(t, s.CancelReservation(ctx, reservationID, "user-1"))

	var slots int
	require.NoError(t, s.db.QueryRow(
		`SELECT slots_available FROM experiences WHERE experience_id = ?`, "exp-1",
	).Scan(&slots))
	require.Equal(t, 5, slots) // slot returned

	// cancelling twice is a conflict
	err = s.CancelReservation(ctx, reservationID, "user-1")
	require.Error(t, err)
	require.Contains(t, errx.Message(err), "not active")
}

func TestCancelReservationUnknown(t *testing.T) {
	s := openTestStore(t)

	err := s.CancelReservation(context.Background(), "missing", "user-1")
	require.Error(t, err)
	require.True(t, errx.IsNotFound(err))
}
