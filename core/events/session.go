package events

const (
	// KindSessionActivated identifies completion of session activation.
	KindSessionActivated Kind = "session.activated"
	// KindSessionDeactivated identifies completion of session teardown.
	KindSessionDeactivated Kind = "session.deactivated"
)

// SessionActivated marks that the session finished its setup sequence.
type SessionActivated struct{ Base }

// NewSessionActivated creates a session activated event.
func NewSessionActivated() SessionActivated {
	return SessionActivated{Base: NewBase(KindSessionActivated)}
}

// SessionDeactivated marks that the session finished its teardown sequence.
type SessionDeactivated struct{ Base }

// NewSessionDeactivated creates a session deactivated event.
func NewSessionDeactivated() SessionDeactivated {
	return SessionDeactivated{Base: NewBase(KindSessionDeactivated)}
}
