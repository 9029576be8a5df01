package members

import "time"

// UserProfile is a member account row.
type UserProfile struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	IsBlocked bool   `json:"is_blocked"`
}

// SubscriptionStatus summarizes a member's subscription and current-month usage.
type SubscriptionStatus struct {
	Status         string `json:"status"`
	Tier           string `json:"tier"`
	MonthlyQuota   int    `json:"monthly_quota"`
	UsedThisMonth  int    `json:"used_this_month"`
	RemainingQuota int    `json:"remaining_quota"`
}

// Reservation is a member's booking of an experience, joined with the
// experience details.
type Reservation struct {
	ReservationID string    `json:"reservation_id"`
	ExperienceID  string    `json:"experience_id"`
	Title         string    `json:"title"`
	When          time.Time `json:"when"`
	Status        string    `json:"status"`
}

// Reservation lifecycle states.
const (
	ReservationReserved  = "reserved"
	ReservationCancelled = "cancelled"
)

// SubscriptionActive is the only status that permits new reservations.
const SubscriptionActive = "active"
