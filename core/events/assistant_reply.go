package events

const (
	// KindAssistantPlaybackStarted identifies the start of spoken playback for a reply.
	KindAssistantPlaybackStarted Kind = "assistant_reply.playback_started"
	// KindAssistantPlaybackEnded identifies the end of spoken playback for a reply.
	KindAssistantPlaybackEnded Kind = "assistant_reply.playback_ended"
	// KindAssistantPlaybackFailed identifies a playback attempt that errored out.
	KindAssistantPlaybackFailed Kind = "assistant_reply.playback_failed"
)

// AssistantPlaybackStarted marks that playback was initiated for a reply.
type AssistantPlaybackStarted struct {
	Base
	MessageID string
}

// NewAssistantPlaybackStarted creates a playback started event.
func NewAssistantPlaybackStarted(messageID string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), MessageID: messageID}
}

// AssistantPlaybackEnded marks that playback finished for a reply.
type AssistantPlaybackEnded struct {
	Base
	MessageID string
}

// NewAssistantPlaybackEnded creates a playback ended event.
func NewAssistantPlaybackEnded(messageID string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), MessageID: messageID}
}

// AssistantPlaybackFailed marks that a playback attempt errored. Playback
// failures are absorbed by the pipeline; the event is the only surface.
type AssistantPlaybackFailed struct {
	Base
	MessageID string
	Err       error
}

// NewAssistantPlaybackFailed creates a playback failed event.
func NewAssistantPlaybackFailed(messageID string, err error) AssistantPlaybackFailed {
	return AssistantPlaybackFailed{Base: NewBase(KindAssistantPlaybackFailed), MessageID: messageID, Err: err}
}
