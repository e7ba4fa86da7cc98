package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lkosir/voicepipe-core/core/audio"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.calls...)
}

type stubCaptureClient struct {
	log *callLog

	mu      sync.Mutex
	onAudio func(audio []byte)

	startCalls int
	stopCalls  int
	closeCalls int
}

func (c *stubCaptureClient) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = onAudio
	c.startCalls++
	return nil
}

func (c *stubCaptureClient) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCalls++
	if c.log != nil {
		c.log.record("capture.stop")
	}
	return nil
}

func (c *stubCaptureClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.log != nil {
		c.log.record("capture.close")
	}
}

func (c *stubCaptureClient) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (c *stubCaptureClient) feed(pcm []byte) {
	c.mu.Lock()
	onAudio := c.onAudio
	c.mu.Unlock()
	if onAudio != nil {
		onAudio(pcm)
	}
}

type loggingTranscriptionStreamer struct {
	stubTranscriptionStreamer
	log *callLog
}

func (s *loggingTranscriptionStreamer) Close(ctx context.Context) error {
	if s.log != nil {
		s.log.record("transcription.close")
	}
	return s.stubTranscriptionStreamer.Close(ctx)
}

type loggingSynthesisStreamer struct {
	stubSynthesisStreamer
	log *callLog
}

func (s *loggingSynthesisStreamer) Close(ctx context.Context) error {
	if s.log != nil {
		s.log.record("synthesis.close")
	}
	return s.stubSynthesisStreamer.Close(ctx)
}

func TestSessionActivateDeactivateLifecycle(t *testing.T) {
	capture := &stubCaptureClient{}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return capture, nil
		}),
	)

	deactivated := false
	err := session.Activate(context.Background(),
		WithDeactivatedCallback(func() { deactivated = true }),
	)
	if err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}
	if session.State() != StateActive {
		t.Fatalf("Expected state active, got %v", session.State())
	}
	if capture.startCalls != 1 {
		t.Fatalf("Expected capture to start once, got %d", capture.startCalls)
	}

	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}
	if session.State() != StateInactive {
		t.Fatalf("Expected state inactive, got %v", session.State())
	}
	if !deactivated {
		t.Fatal("Expected the deactivated callback to fire")
	}
}

func TestSessionActivateWhileActiveFails(t *testing.T) {
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return &stubCaptureClient{}, nil
		}),
	)
	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}

	if err := session.Activate(context.Background()); err != ErrSessionActive {
		t.Fatalf("Expected ErrSessionActive, got %v", err)
	}
}

func TestSessionActivateWithoutCaptureFails(t *testing.T) {
	session := NewSession()

	if err := session.Activate(context.Background()); err != ErrNoCaptureClient {
		t.Fatalf("Expected ErrNoCaptureClient, got %v", err)
	}
	if session.State() != StateInactive {
		t.Fatalf("Expected state inactive after a failed activation, got %v", session.State())
	}
}

func TestSessionDeactivateIsUnconditionallyIdempotent(t *testing.T) {
	capture := &stubCaptureClient{}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return capture, nil
		}),
	)

	// Deactivating an inactive session is a no-op.
	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Expected deactivation of an inactive session to be a no-op, got %v", err)
	}

	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := session.Deactivate(context.Background()); err != nil {
			t.Fatalf("Failed to deactivate session on call %d: %v", i+1, err)
		}
	}

	if capture.stopCalls != 1 || capture.closeCalls != 1 {
		t.Fatalf("Expected capture teardown exactly once, got %d stops and %d closes",
			capture.stopCalls, capture.closeCalls)
	}
}

func TestSessionTeardownOrder(t *testing.T) {
	log := &callLog{}
	capture := &stubCaptureClient{log: log}
	transcription := &loggingTranscriptionStreamer{log: log}
	synthesis := &loggingSynthesisStreamer{log: log}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return capture, nil
		}),
		WithTranscriptionFactory(func() TranscriptionStreamer { return transcription }),
		WithSynthesisFactory(func() SynthesisStreamer { return synthesis }),
	)
	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}
	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}

	want := []string{"capture.stop", "transcription.close", "synthesis.close", "capture.close"}
	got := log.snapshot()
	if len(got) != len(want) {
		t.Fatalf("Expected teardown steps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected teardown step %d to be %q, got %v", i, want[i], got)
		}
	}
}

func TestSessionBuildsFreshPipelinePerActivation(t *testing.T) {
	factoryCalls := 0
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			factoryCalls++
			return &stubCaptureClient{}, nil
		}),
	)

	for i := 0; i < 2; i++ {
		if err := session.Activate(context.Background()); err != nil {
			t.Fatalf("Failed to activate session on round %d: %v", i+1, err)
		}
		if err := session.Deactivate(context.Background()); err != nil {
			t.Fatalf("Failed to deactivate session on round %d: %v", i+1, err)
		}
	}

	if factoryCalls != 2 {
		t.Fatalf("Expected a fresh capture client per activation, got %d factory calls", factoryCalls)
	}
}

func TestSessionCaptureFlowsToTranscription(t *testing.T) {
	capture := &stubCaptureClient{}
	remote := &stubTranscriptionStreamer{}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return capture, nil
		}),
		WithTranscriptionFactory(func() TranscriptionStreamer { return remote }),
	)

	var speakingChanges []bool
	err := session.Activate(context.Background(),
		WithUserSpeakingChangedCallback(func(speaking bool) {
			speakingChanges = append(speakingChanges, speaking)
		}),
	)
	if err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}

	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.5
	}
	quiet := make([]float32, 160)

	// Default detector debounce: 3 frames of speech to open, 30 of silence
	// to close.
	for i := 0; i < 5; i++ {
		capture.feed(audio.PCM16FromFloat32(loud))
	}
	for i := 0; i < 35; i++ {
		capture.feed(audio.PCM16FromFloat32(quiet))
	}

	if len(remote.sentAudio) != 1 {
		t.Fatalf("Expected one utterance uplink, got %d", len(remote.sentAudio))
	}
	if len(speakingChanges) != 2 || !speakingChanges[0] || speakingChanges[1] {
		t.Fatalf("Expected user speaking to toggle on then off, got %v", speakingChanges)
	}

	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}
	if session.Speaking().UserSpeaking {
		t.Fatal("Expected speaking flags to clear on deactivation")
	}
}

func TestSessionObserveSpeaksNewestReply(t *testing.T) {
	remote := &stubSynthesisStreamer{}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return &stubCaptureClient{}, nil
		}),
		WithSynthesisFactory(func() SynthesisStreamer { return remote }),
	)

	// Observing while inactive is a no-op.
	session.Observe(assistantReply("a0", "Too early."))

	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}
	session.Observe(assistantReply("a1", "Hello!"))

	if len(remote.sentTexts) != 1 || remote.sentTexts[0] != "Hello!" {
		t.Fatalf("Expected the newest reply to be dispatched, got %v", remote.sentTexts)
	}

	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}

	// Replies spoken in an earlier activation stay spoken.
	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to reactivate session: %v", err)
	}
	session.Observe(assistantReply("a1", "Hello!"))
	if len(remote.sentTexts) != 1 {
		t.Fatalf("Expected no replay across activations, got %v", remote.sentTexts)
	}
}

func TestSessionRegistryPersistsAcrossActivations(t *testing.T) {
	enumerator := &stubDeviceEnumerator{devices: []audio.Device{
		{ID: "0", Kind: audio.DeviceInput, Label: "Built-in Microphone"},
	}}
	session := NewSession(
		WithCaptureClientFactory(func(context.Context) (CaptureClient, error) {
			return &stubCaptureClient{}, nil
		}),
		WithDeviceEnumerator(enumerator),
	)
	session.Registry().SelectMicrophone("0")

	if err := session.Activate(context.Background()); err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}

	deadline := time.After(time.Second)
	for len(session.Registry().Microphones()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Expected activation to refresh the device list")
		case <-time.After(time.Millisecond):
		}
	}

	if err := session.Deactivate(context.Background()); err != nil {
		t.Fatalf("Failed to deactivate session: %v", err)
	}

	if got := session.Registry().SelectedMicrophone(); got != "0" {
		t.Fatalf("Expected the microphone selection to survive deactivation, got %q", got)
	}
	if len(session.Registry().Microphones()) != 1 {
		t.Fatal("Expected the device list to survive deactivation")
	}
}
