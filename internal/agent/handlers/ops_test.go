package handlers

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/curiopass/support-agent/internal/agent/model"
	errx "github.com/curiopass/support-agent/internal/core/error"
	"github.com/curiopass/support-agent/internal/store/members"
)

// stubCompleter returns a canned reply or error.
type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return s.reply, s.err
}

// fakeDirectory is an in-memory MemberDirectory recording calls.
type fakeDirectory struct {
	profile      *members.UserProfile
	subscription *members.SubscriptionStatus
	reservations []members.Reservation

	err error

	reservedExperience string
	cancelled          string
	listCalls          int
}

func (f *fakeDirectory) GetUserProfile(_ context.Context, _ string) (*members.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile == nil {
		return nil, errx.WrapSQL(sql.ErrNoRows)
	}
	return f.profile, nil
}

func (f *fakeDirectory) GetSubscriptionStatus(_ context.Context, _ string, _ time.Time) (*members.SubscriptionStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.subscription == nil {
		return nil, errx.WrapSQL(sql.ErrNoRows)
	}
	return f.subscription, nil
}

func (f *fakeDirectory) ListReservations(_ context.Context, _ string, _ bool) ([]members.Reservation, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reservations, nil
}

func (f *fakeDirectory) ReserveExperience(_ context.Context, _, experienceID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.reservedExperience = experienceID
	return "res-1234", nil
}

func (f *fakeDirectory) CancelReservation(_ context.Context, reservationID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = reservationID
	return nil
}

func boundConversation() *model.ConversationState {
	return &model.ConversationState{
		ConversationID: "conv-1",
		Scratch:        map[string]string{model.ScratchUserID: "user-1"},
	}
}

func TestExecuteUnboundConversation(t *testing.T) {
	h := NewOperationsHandler(&fakeDirectory{}, &stubCompleter{})

	res, err := h.Execute(context.Background(), model.IntentLogin,
		&model.ConversationState{ConversationID: "conv-1"}, "log me in")
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestExecuteLogin(t *testing.T) {
	dir := &fakeDirectory{profile: &members.UserProfile{
		UserID: "user-1", FullName: "Ada Lovelace", Email: "ada@example.com",
	}}
	h := NewOperationsHandler(dir, &stubCompleter{})

	res, err := h.Execute(context.Background(), model.IntentLogin, boundConversation(), "who am I logged in as?")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Contains(t, res.Summary, "Ada Lovelace")
	require.Contains(t, res.Summary, "ada@example.com")
}

func TestExecuteLoginBlockedAccount(t *testing.T) {
	dir := &fakeDirectory{profile: &members.UserProfile{
		UserID: "user-1", FullName: "Ada Lovelace", Email: "ada@example.com", IsBlocked: true,
	}}
	h := NewOperationsHandler(dir, &stubCompleter{})

	res, err := h.Execute(context.Background(), model.IntentLogin, boundConversation(), "log in")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Contains(t, res.Summary, "blocked")
}

func TestExecuteSubscription(t *testing.T) {
	dir := &fakeDirectory{subscription: &members.SubscriptionStatus{
		Status: "active", Tier: "basic", MonthlyQuota: 3, UsedThisMonth: 1, RemainingQuota: 2,
	}}
	h := NewOperationsHandler(dir, &stubCompleter{})

	res, err := h.Execute(context.Background(), model.IntentSubscription, boundConversation(), "what's my plan?")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "Your subscription is active (basic tier): 1 of 3 experiences used this month, 2 remaining.", res.Summary)
}

func TestExecuteRecordNotFound(t *testing.T) {
	h := NewOperationsHandler(&fakeDirectory{}, &stubCompleter{})

	res, err := h.Execute(context.Background(), model.IntentSubscription, boundConversation(), "what's my plan?")
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestExecuteStoreFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{err: errx.WrapSQL(errors.New("disk I/O error"))}
	h := NewOperationsHandler(dir, &stubCompleter{})

	_, err := h.Execute(context.Background(), model.IntentLogin, boundConversation(), "log in")
	require.Error(t, err)
	require.False(t, errx.IsNotFound(err))
}

func TestReservationSelectsReserve(t *testing.T) {
	dir := &fakeDirectory{}
	selector := &stubCompleter{reply: `{"action":"reserve_experience","args":{"experience_id":"exp-9"}}`}
	h := NewOperationsHandler(dir, selector)

	res, err := h.Execute(context.Background(), model.IntentReservation, boundConversation(), "book exp-9 for me")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "exp-9", dir.reservedExperience)
	require.Contains(t, res.Summary, "res-1234")
}

func TestReservationSelectsCancel(t *testing.T) {
	dir := &fakeDirectory{}
	selector := &stubCompleter{reply: `{"action":"cancel_reservation","args":{"reservation_id":"res-7"}}`}
	h := NewOperationsHandler(dir, selector)

	res, err := h.Execute(context.Background(), model.IntentReservation, boundConversation(), "cancel res-7")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, "res-7", dir.cancelled)
}

func TestReservationSelectorFailureFallsBackToList(t *testing.T) {
	dir := &fakeDirectory{reservations: []members.Reservation{
		{ReservationID: "res-1", Title: "Wine tasting", When: time.Now().Add(48 * time.Hour), Status: "reserved"},
	}}
	selector := &stubCompleter{err: errors.New("model unavailable")}
	h := NewOperationsHandler(dir, selector)

	res, err := h.Execute(context.Background(), model.IntentReservation, boundConversation(), "do something with my booking")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, 1, dir.listCalls)
	require.Contains(t, res.Summary, "Wine tasting")
}

func TestReservationGarbageSelectionFallsBackToList(t *testing.T) {
	dir := &fakeDirectory{}
	selector := &stubCompleter{reply: "I think they want to book something?"}
	h := NewOperationsHandler(dir, selector)

	res, err := h.Execute(context.Background(), model.IntentReservation, boundConversation(), "asdfasdf")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Equal(t, 1, dir.listCalls)
	require.Contains(t, res.Summary, "no upcoming reservations")
}

func TestReservationReserveWithoutExperienceIDListsInstead(t *testing.T) {
	dir := &fakeDirectory{}
	selector := &stubCompleter{reply: `{"action":"reserve_experience","args":{}}`}
	h := NewOperationsHandler(dir, selector)

	res, err := h.Execute(context.Background(), model.IntentReservation, boundConversation(), "book something")
	require.NoError(t, err)
	require.True(t, res.Found)
	require.Empty(t, dir.reservedExperience)
	require.Equal(t, 1, dir.listCalls)
}
