package events

import (
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user speech ended", event: NewUserSpeechEnded(), expected: KindUserSpeechEnded},
		{name: "user interim updated", event: NewUserTranscriptInterimUpdated("text"), expected: KindUserTranscriptInterimUpdated},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "assistant playback started", event: NewAssistantPlaybackStarted("m1"), expected: KindAssistantPlaybackStarted},
		{name: "assistant playback ended", event: NewAssistantPlaybackEnded("m1"), expected: KindAssistantPlaybackEnded},
		{name: "assistant playback failed", event: NewAssistantPlaybackFailed("m1", errors.New("boom")), expected: KindAssistantPlaybackFailed},
		{name: "transport status changed", event: NewTransportStatusChanged("transcription", "connected"), expected: KindTransportStatusChanged},
		{name: "session activated", event: NewSessionActivated(), expected: KindSessionActivated},
		{name: "session deactivated", event: NewSessionDeactivated(), expected: KindSessionDeactivated},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestPlaybackBoundaryKindsAreDistinct(t *testing.T) {
	started := NewAssistantPlaybackStarted("m1")
	ended := NewAssistantPlaybackEnded("m1")

	if started.Kind() == ended.Kind() {
		t.Fatalf("expected playback started and ended kinds to differ, both were %q", started.Kind())
	}
}
