package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/events"
	"github.com/lkosir/voicepipe-core/core/transcribe"
	transcribenative "github.com/lkosir/voicepipe-core/core/transcribe/native"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) emit(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

type stubTranscriptionStreamer struct {
	transcribeErr error
	opts          transcribe.TranscriptionOptions
	sentAudio     [][]byte
	closeCalls    int
}

func (s *stubTranscriptionStreamer) Transcribe(ctx context.Context, opts ...transcribe.TranscriptionOption) error {
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s.transcribeErr
}

func (s *stubTranscriptionStreamer) SendAudio(audio []byte) error {
	s.sentAudio = append(s.sentAudio, audio)
	return nil
}

func (s *stubTranscriptionStreamer) Close(context.Context) error {
	s.closeCalls++
	return nil
}

type stubRecognizer struct {
	startErr  error
	started   bool
	stopCalls int
	opts      transcribe.TranscriptionOptions
}

func (s *stubRecognizer) Start(ctx context.Context, opts ...transcribe.TranscriptionOption) error {
	if s.startErr != nil {
		return s.startErr
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.started = true
	return nil
}

func (s *stubRecognizer) Stop() error {
	s.stopCalls++
	return nil
}

func newTestTransport(remote TranscriptionStreamer, fallback FallbackRecognizer, recorder *eventRecorder) *transcriptionTransport {
	return newTranscriptionTransport(
		remote, fallback, recorder.emit, &speakingState{}, "en-US", audio.GetDefaultEncodingInfo(),
	)
}

func TestTranscriptionPrefersRemoteChannel(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{}
	fallback := &stubRecognizer{}
	transport := newTestTransport(remote, fallback, recorder)

	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	if transport.currentStatus() != StatusConnected {
		t.Fatalf("Expected status connected, got %v", transport.currentStatus())
	}
	if fallback.started {
		t.Fatal("Expected the fallback recognizer to stay idle while remote is up")
	}
	if remote.opts.Language != "en-US" {
		t.Fatalf("Expected the session language to reach the remote channel, got %q", remote.opts.Language)
	}
}

func TestTranscriptionSendsUtteranceAsPCM16(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{}
	transport := newTestTransport(remote, nil, recorder)
	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	transport.feedSpeechStart()
	transport.feedSpeechEnd([]float32{0.5, -0.5})

	if len(remote.sentAudio) != 1 {
		t.Fatalf("Expected one uplink frame per utterance, got %d", len(remote.sentAudio))
	}
	want := audio.PCM16FromFloat32([]float32{0.5, -0.5})
	if string(remote.sentAudio[0]) != string(want) {
		t.Fatalf("Expected PCM16 little-endian uplink, got % x", remote.sentAudio[0])
	}

	kinds := recorder.kinds()
	if len(kinds) < 3 || kinds[1] != events.KindUserSpeechStarted || kinds[2] != events.KindUserSpeechEnded {
		t.Fatalf("Expected speech boundary events in order, got %v", kinds)
	}
}

func TestTranscriptionFallsBackWhenRemoteDialFails(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{transcribeErr: errors.New("bridge unreachable")}
	fallback := &stubRecognizer{}
	transport := newTestTransport(remote, fallback, recorder)

	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	if !fallback.started {
		t.Fatal("Expected the fallback recognizer to start after a failed dial")
	}
	if transport.currentStatus() != StatusDisconnected {
		t.Fatalf("Expected status disconnected, got %v", transport.currentStatus())
	}
}

func TestTranscriptionHandsOffOnMidSessionDrop(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{}
	fallback := &stubRecognizer{}
	transport := newTestTransport(remote, fallback, recorder)
	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	remote.opts.DisconnectedCallback(errors.New("connection reset"))

	if !fallback.started {
		t.Fatal("Expected the fallback recognizer to take over after a drop")
	}

	// The engine now reports its own boundaries; segmenter signals must not
	// double-emit speaking changes.
	before := len(recorder.kinds())
	transport.feedSpeechStart()
	transport.feedSpeechEnd([]float32{0.1})
	if got := len(recorder.kinds()); got != before {
		t.Fatalf("Expected segmenter boundaries to be ignored in local mode, got %d new events", got-before)
	}
	if len(remote.sentAudio) != 0 {
		t.Fatal("Expected no uplink after the remote channel dropped")
	}
}

func TestTranscriptionUnavailableRecognizerIsNotFatal(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{transcribeErr: errors.New("bridge unreachable")}
	fallback := &stubRecognizer{startErr: transcribenative.ErrUnavailable}
	transport := newTestTransport(remote, fallback, recorder)

	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Expected recognizer unavailability to be tolerated, got %v", err)
	}
	if transport.currentStatus() != StatusDisconnected {
		t.Fatalf("Expected status disconnected, got %v", transport.currentStatus())
	}
}

func TestTranscriptionCloseIsIdempotent(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{}
	transport := newTestTransport(remote, nil, recorder)
	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	if err := transport.close(context.Background()); err != nil {
		t.Fatalf("Failed to close transport: %v", err)
	}
	if err := transport.close(context.Background()); err != nil {
		t.Fatalf("Expected repeated close to be a no-op, got %v", err)
	}
	if remote.closeCalls != 1 {
		t.Fatalf("Expected exactly one remote close, got %d", remote.closeCalls)
	}
}

func TestTranscriptionEmitsTranscriptEvents(t *testing.T) {
	recorder := &eventRecorder{}
	remote := &stubTranscriptionStreamer{}
	transport := newTestTransport(remote, nil, recorder)
	if err := transport.start(context.Background()); err != nil {
		t.Fatalf("Failed to start transport: %v", err)
	}

	remote.opts.InterimTranscriptionCallback("hel")
	remote.opts.TranscriptionCallback("hello there")
	remote.opts.TranscriptionCallback("")

	var interim, final int
	for _, event := range recorder.kinds() {
		switch event {
		case events.KindUserTranscriptInterimUpdated:
			interim++
		case events.KindUserTranscriptFinal:
			final++
		}
	}
	if interim != 1 || final != 1 {
		t.Fatalf("Expected 1 interim and 1 final transcript event, got %d and %d", interim, final)
	}
}
