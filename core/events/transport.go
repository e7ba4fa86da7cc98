package events

const (
	// KindTransportStatusChanged identifies a transport channel status transition.
	KindTransportStatusChanged Kind = "transport.status_changed"
)

// TransportStatusChanged carries a channel kind and its new status. Status
// transitions within a session are one-directional, so consumers may treat
// "disconnected" as terminal for the session.
type TransportStatusChanged struct {
	Base
	Channel string
	Status  string
}

// NewTransportStatusChanged creates a transport status transition event.
func NewTransportStatusChanged(channel, status string) TransportStatusChanged {
	return TransportStatusChanged{Base: NewBase(KindTransportStatusChanged), Channel: channel, Status: status}
}
