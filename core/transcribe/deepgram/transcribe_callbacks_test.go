package deepgram

import (
	"context"
	"fmt"
	"testing"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/lkosir/voicepipe-core/core/transcribe"
)

func resultsMessage(transcript string, isFinal, speechFinal bool) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"is_final":%t,"speech_final":%t,"channel":{"alternatives":[{"transcript":%q}]}}`,
		api.TypeMessageResponse, isFinal, speechFinal, transcript,
	))
}

func typeOnlyMessage(msgType api.TypeResponse) []byte {
	return []byte(fmt.Sprintf(`{"type":%q}`, msgType))
}

func TestProcessMessageAccumulatesFinalsUntilSpeechFinal(t *testing.T) {
	client := NewTranscriptionClient()
	finals := []string{}
	endCalls := 0
	options := transcribe.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { finals = append(finals, transcript) },
		SpeechEndedCallback:   func() { endCalls++ },
	}

	client.processMessage(context.Background(), resultsMessage("hello", true, false), options)
	if len(finals) != 0 {
		t.Fatalf("expected no transcript before speech-final, got %v", finals)
	}

	client.processMessage(context.Background(), resultsMessage("there", true, true), options)
	if len(finals) != 1 || finals[0] != "hello there" {
		t.Fatalf("expected accumulated transcript \"hello there\", got %v", finals)
	}
	if endCalls != 1 {
		t.Fatalf("expected speech-end callback once, got %d", endCalls)
	}

	// accumulation resets between utterances
	client.processMessage(context.Background(), resultsMessage("again", true, true), options)
	if len(finals) != 2 || finals[1] != "again" {
		t.Fatalf("expected a fresh transcript per utterance, got %v", finals)
	}
}

func TestProcessMessageInterimIncludesAccumulatedFinals(t *testing.T) {
	client := NewTranscriptionClient()
	interims := []string{}
	options := transcribe.TranscriptionOptions{
		TranscriptionCallback:        func(string) {},
		InterimTranscriptionCallback: func(transcript string) { interims = append(interims, transcript) },
	}

	client.processMessage(context.Background(), resultsMessage("hello", true, false), options)
	client.processMessage(context.Background(), resultsMessage("wor", false, false), options)

	if len(interims) != 1 || interims[0] != "hello wor" {
		t.Fatalf("expected interim to include accumulated finals, got %v", interims)
	}
}

func TestProcessMessageUtteranceEndClosesOpenSegmentOnce(t *testing.T) {
	client := NewTranscriptionClient()
	finals := []string{}
	startCalls := 0
	endCalls := 0
	options := transcribe.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { finals = append(finals, transcript) },
		SpeechStartedCallback: func() { startCalls++ },
		SpeechEndedCallback:   func() { endCalls++ },
	}

	client.processMessage(context.Background(), typeOnlyMessage(api.TypeSpeechStartedResponse), options)
	if startCalls != 1 {
		t.Fatalf("expected speech-start callback once, got %d", startCalls)
	}

	client.processMessage(context.Background(), resultsMessage("late words", true, false), options)
	client.processMessage(context.Background(), typeOnlyMessage(api.TypeUtteranceEndResponse), options)

	if len(finals) != 1 || finals[0] != "late words" {
		t.Fatalf("expected utterance-end to flush the transcript, got %v", finals)
	}
	if endCalls != 1 {
		t.Fatalf("expected speech-end callback once, got %d", endCalls)
	}

	// a second utterance-end without a new speech-start is a no-op
	client.processMessage(context.Background(), typeOnlyMessage(api.TypeUtteranceEndResponse), options)
	if endCalls != 1 {
		t.Fatalf("expected no speech-end without an open segment, got %d", endCalls)
	}
}

func TestProcessMessageDropsMalformedPayloads(t *testing.T) {
	client := NewTranscriptionClient()
	calls := 0
	options := transcribe.TranscriptionOptions{
		TranscriptionCallback:        func(string) { calls++ },
		InterimTranscriptionCallback: func(string) { calls++ },
	}

	client.processMessage(context.Background(), []byte("not json"), options)
	client.processMessage(context.Background(), []byte(`{"type":"Results","is_final":"bad"}`), options)

	if calls != 0 {
		t.Fatalf("expected malformed messages to be dropped, got %d callbacks", calls)
	}
}

func TestOnSpeechEndedSkipsEmptyTranscript(t *testing.T) {
	client := NewTranscriptionClient()
	finals := []string{}
	endCalls := 0
	options := transcribe.TranscriptionOptions{
		TranscriptionCallback: func(transcript string) { finals = append(finals, transcript) },
		SpeechEndedCallback:   func() { endCalls++ },
	}

	client.processMessage(context.Background(), resultsMessage("", true, true), options)

	if len(finals) != 0 {
		t.Fatalf("expected no transcript callback for silent utterances, got %v", finals)
	}
	if endCalls != 1 {
		t.Fatalf("expected speech-end callback even without text, got %d", endCalls)
	}
}

func TestWritesWithoutConnectionDoNotPanic(t *testing.T) {
	client := NewTranscriptionClient()

	client.sendKeepAlive()

	if err := client.SendAudio([]byte{0, 0}); err == nil {
		t.Fatalf("expected an error when sending audio without a connection")
	}
	if err := client.sendSilence([]byte{0, 0}); err != nil {
		t.Fatalf("expected silence without a connection to be a no-op, got %v", err)
	}
}
