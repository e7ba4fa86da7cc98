package pipeline

import events "github.com/lkosir/voicepipe-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts ActivateOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserSpeechStarted:
			if opts.onUserSpeakingChanged != nil {
				opts.onUserSpeakingChanged(true)
			}
		case events.UserSpeechEnded:
			if opts.onUserSpeakingChanged != nil {
				opts.onUserSpeakingChanged(false)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantPlaybackStarted:
			if opts.onAgentSpeakingChanged != nil {
				opts.onAgentSpeakingChanged(true)
			}
			if opts.onPlaybackStarted != nil {
				opts.onPlaybackStarted(typedEvent.MessageID)
			}
		case events.AssistantPlaybackEnded:
			if opts.onAgentSpeakingChanged != nil {
				opts.onAgentSpeakingChanged(false)
			}
			if opts.onPlaybackEnded != nil {
				opts.onPlaybackEnded(typedEvent.MessageID)
			}
		case events.AssistantPlaybackFailed:
			if opts.onAgentSpeakingChanged != nil {
				opts.onAgentSpeakingChanged(false)
			}
			if opts.onPlaybackFailed != nil {
				opts.onPlaybackFailed(typedEvent.MessageID, typedEvent.Err)
			}
		case events.TransportStatusChanged:
			if opts.onTransportStatusChanged != nil {
				opts.onTransportStatusChanged(typedEvent.Channel, typedEvent.Status)
			}
		case events.SessionDeactivated:
			if opts.onDeactivated != nil {
				opts.onDeactivated()
			}
		}
	}
}
