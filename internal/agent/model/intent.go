package model

// Intent is the closed category assigned to a user message. It determines
// which handler a turn is dispatched to.
type Intent string

const (
	IntentLogin        Intent = "login"
	IntentSubscription Intent = "subscription"
	IntentReservation  Intent = "reservation"
	IntentKnowledge    Intent = "knowledge"
	IntentUnknown      Intent = "unknown"
)

// Known reports whether the intent is one of the classifier labels
// (i.e. anything but unknown).
func (i Intent) Known() bool {
	switch i {
	case IntentLogin, IntentSubscription, IntentReservation, IntentKnowledge:
		return true
	}
	return false
}

func (i Intent) String() string {
	return string(i)
}
