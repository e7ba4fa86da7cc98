package pipeline

// ChannelKind distinguishes the two transport channels a session owns.
type ChannelKind string

const (
	ChannelTranscription ChannelKind = "transcription"
	ChannelSynthesis     ChannelKind = "synthesis"
)

// ChannelStatus is the connection state of one transport channel. Within a
// session it only moves forward: connecting to connected, or connecting to
// disconnected, or connected to disconnected. There is no in-session
// reconnect; fallback is permanent until the session is reactivated.
type ChannelStatus int

const (
	StatusConnecting ChannelStatus = iota
	StatusConnected
	StatusDisconnected
)

func (s ChannelStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
