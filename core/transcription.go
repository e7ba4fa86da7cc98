package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/events"
	"github.com/lkosir/voicepipe-core/core/transcribe"
	transcribenative "github.com/lkosir/voicepipe-core/core/transcribe/native"
)

// transcriptionTransport routes user speech to a recognizer. The remote
// streaming channel is the primary path; when it cannot be established, or
// drops mid-session, the transport hands off to the local continuous
// recognition engine for the remainder of the session. The handoff is
// one-way; a dropped remote channel is not redialed until the next
// activation.
type transcriptionTransport struct {
	remote   TranscriptionStreamer
	fallback FallbackRecognizer

	emit         eventEmitter
	speaking     *speakingState
	language     string
	encodingInfo audio.EncodingInfo

	ctx context.Context

	mu           sync.Mutex
	status       ChannelStatus
	remoteActive bool
	localActive  bool

	closed atomic.Bool
}

func newTranscriptionTransport(
	remote TranscriptionStreamer,
	fallback FallbackRecognizer,
	emit eventEmitter,
	speaking *speakingState,
	language string,
	encodingInfo audio.EncodingInfo,
) *transcriptionTransport {
	return &transcriptionTransport{
		remote:       remote,
		fallback:     fallback,
		emit:         emit,
		speaking:     speaking,
		language:     language,
		encodingInfo: encodingInfo,
		status:       StatusConnecting,
	}
}

// start establishes the recognition path. A session without any working
// recognizer is still viable for synthesis, so recognizer unavailability is
// reported through the transport status rather than as an error.
func (t *transcriptionTransport) start(ctx context.Context) error {
	t.ctx = ctx
	t.setStatus(StatusConnecting)

	if t.remote != nil {
		err := t.remote.Transcribe(ctx,
			transcribe.WithEncodingInfo(t.encodingInfo),
			transcribe.WithLanguage(t.language),
			transcribe.WithInterimTranscriptionCallback(t.handleInterimTranscript),
			transcribe.WithTranscriptionCallback(t.handleFinalTranscript),
			transcribe.WithDisconnectedCallback(t.handleRemoteDisconnect),
		)
		if err == nil {
			t.mu.Lock()
			t.remoteActive = true
			t.mu.Unlock()
			t.setStatus(StatusConnected)
			return nil
		}
		log.Printf("Remote transcription unavailable, falling back to host recognition: %v", err)
	}

	t.startFallback(ctx)
	return nil
}

func (t *transcriptionTransport) startFallback(ctx context.Context) {
	t.setStatus(StatusDisconnected)

	if t.fallback == nil {
		log.Println("No host recognizer configured, transcription is unavailable for this session")
		return
	}

	err := t.fallback.Start(ctx,
		transcribe.WithLanguage(t.language),
		transcribe.WithSpeechStartedCallback(func() { t.handleSpeechBoundary(true) }),
		transcribe.WithSpeechEndedCallback(func() { t.handleSpeechBoundary(false) }),
		transcribe.WithInterimTranscriptionCallback(t.handleInterimTranscript),
		transcribe.WithTranscriptionCallback(t.handleFinalTranscript),
	)
	switch {
	case err == nil:
		t.mu.Lock()
		t.localActive = true
		t.mu.Unlock()
	case errors.Is(err, transcribenative.ErrUnavailable):
		log.Println("No host recognizer available, transcription is unavailable for this session")
	default:
		log.Printf("Failed to start host recognition: %v", err)
	}
}

func (t *transcriptionTransport) handleRemoteDisconnect(err error) {
	if t.closed.Load() {
		return
	}
	if err != nil {
		log.Printf("Remote transcription channel dropped: %v", err)
	}

	t.mu.Lock()
	wasRemote := t.remoteActive
	t.remoteActive = false
	t.mu.Unlock()

	if wasRemote {
		t.startFallback(t.ctx)
	}
}

// feedSpeechStart and feedSpeechEnd carry voice activity boundaries from
// the capture segmenter. While the local engine runs it detects boundaries
// itself, so segmenter signals are ignored to keep a single source of
// speaking state.
func (t *transcriptionTransport) feedSpeechStart() {
	t.mu.Lock()
	local := t.localActive
	t.mu.Unlock()
	if local {
		return
	}
	t.handleSpeechBoundary(true)
}

func (t *transcriptionTransport) feedSpeechEnd(samples []float32) {
	t.mu.Lock()
	local := t.localActive
	remote := t.remoteActive
	t.mu.Unlock()
	if local {
		return
	}

	t.handleSpeechBoundary(false)

	if !remote || len(samples) == 0 {
		return
	}
	if err := t.remote.SendAudio(audio.PCM16FromFloat32(samples)); err != nil {
		log.Printf("Failed to send utterance for transcription: %v", err)
	}
}

func (t *transcriptionTransport) handleSpeechBoundary(speaking bool) {
	t.speaking.setUserSpeaking(speaking)
	if speaking {
		t.emit(events.NewUserSpeechStarted())
	} else {
		t.emit(events.NewUserSpeechEnded())
	}
}

func (t *transcriptionTransport) handleInterimTranscript(transcript string) {
	if transcript == "" {
		return
	}
	t.emit(events.NewUserTranscriptInterimUpdated(transcript))
}

func (t *transcriptionTransport) handleFinalTranscript(transcript string) {
	if transcript == "" {
		return
	}
	t.emit(events.NewUserTranscriptFinal(transcript))
}

func (t *transcriptionTransport) setStatus(status ChannelStatus) {
	t.mu.Lock()
	if t.status == status && status != StatusConnecting {
		t.mu.Unlock()
		return
	}
	t.status = status
	t.mu.Unlock()

	t.emit(events.NewTransportStatusChanged(string(ChannelTranscription), status.String()))
}

func (t *transcriptionTransport) currentStatus() ChannelStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// close tears the transport down. Safe to call repeatedly and regardless of
// which path is active.
func (t *transcriptionTransport) close(ctx context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	remote := t.remoteActive
	local := t.localActive
	t.remoteActive = false
	t.localActive = false
	t.mu.Unlock()

	errs := []error{}
	if remote && t.remote != nil {
		if err := t.remote.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if local && t.fallback != nil {
		if err := t.fallback.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
