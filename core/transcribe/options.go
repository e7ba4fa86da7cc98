// Package transcribe defines the client-side transcription contract shared
// by the remote streaming transports and the local fallback recognizer.
package transcribe

import "github.com/lkosir/voicepipe-core/core/audio"

type TranscriptionOptions struct {
	InterimTranscriptionCallback func(transcript string)
	TranscriptionCallback        func(transcript string)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	ConnectedCallback    func()
	DisconnectedCallback func(err error)

	EncodingInfo audio.EncodingInfo
	Language     string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithConnectedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ConnectedCallback = callback
	}
}

func WithDisconnectedCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.DisconnectedCallback = callback
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// WithLanguage fixes the recognition locale for the session.
func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}
