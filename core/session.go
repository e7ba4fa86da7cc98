// Package pipeline wires microphone capture, utterance segmentation,
// transcription, and reply synthesis into one live conversation session.
//
// A Session moves between three states: inactive, activating, and active.
// Every activation builds a fresh set of working parts; deactivation tears
// all of them down unconditionally and is safe to call at any time, in any
// state, any number of times. Nothing built for one activation is reused by
// the next.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/events"
	"github.com/lkosir/voicepipe-core/core/vad"
)

// SessionState is the lifecycle position of a Session.
type SessionState int

const (
	StateInactive SessionState = iota
	StateActivating
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// ErrSessionActive is returned by Activate when the session is already
// activating or active.
var ErrSessionActive = errors.New("session is already active")

// ErrNoCaptureClient is returned by Activate when no capture client factory
// was configured.
var ErrNoCaptureClient = errors.New("no capture client configured")

// Session is the top-level handle of the voice pipeline.
type Session struct {
	registry *CapabilityRegistry
	marker   *spokenMessageMarker
	speaking *speakingState

	captureFactory       func(ctx context.Context) (CaptureClient, error)
	transcriptionFactory func() TranscriptionStreamer
	recognizerFactory    func() FallbackRecognizer
	synthesisFactory     func() SynthesisStreamer
	localSynthesizer     LocalSynthesizer

	language         string
	completionWindow time.Duration
	detectorOptions  []vad.DetectorOption

	mu      sync.Mutex
	state   SessionState
	handles *sessionHandles
}

// sessionHandles holds everything built for one activation. The struct is
// discarded after teardown; a new activation starts from a clean arena.
type sessionHandles struct {
	id     string
	cancel context.CancelFunc
	emit   eventEmitter

	capture       CaptureClient
	segmenter     *utteranceSegmenter
	transcription *transcriptionTransport
	synthesis     *synthesisOrchestrator

	teardownOnce sync.Once
}

func NewSession(opts ...SessionOption) *Session {
	session := &Session{
		registry:         newCapabilityRegistry(),
		marker:           newSpokenMessageMarker(),
		speaking:         &speakingState{},
		language:         "en-US",
		completionWindow: defaultCompletionWindow,
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Registry exposes device and voice capabilities and their selections. It
// persists across activations.
func (s *Session) Registry() *CapabilityRegistry {
	return s.registry
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Speaking reports the current user and agent speaking flags.
func (s *Session) Speaking() SpeakingSnapshot {
	return s.speaking.snapshot()
}

// Activate builds a fresh pipeline and starts capturing. Callbacks passed
// here are bound to this activation only. Activating an already active
// session returns ErrSessionActive.
func (s *Session) Activate(ctx context.Context, opts ...ActivateOption) error {
	ctx, span := tracer.Start(ctx, "activate session")
	defer span.End()

	s.mu.Lock()
	if s.state != StateInactive {
		s.mu.Unlock()
		span.RecordError(ErrSessionActive)
		span.SetStatus(codes.Error, ErrSessionActive.Error())
		return ErrSessionActive
	}
	s.state = StateActivating
	s.mu.Unlock()

	handles, err := s.setup(ctx, opts...)
	if err != nil {
		if handles != nil {
			s.teardown(context.Background(), handles)
		}
		s.mu.Lock()
		s.state = StateInactive
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	if s.state != StateActivating {
		// Deactivated while setting up; the deactivation wins and the
		// freshly built pipeline is released immediately.
		s.mu.Unlock()
		return s.teardown(ctx, handles)
	}
	s.handles = handles
	s.state = StateActive
	s.mu.Unlock()

	span.SetAttributes(attribute.String("session.id", handles.id))
	handles.emit(events.NewSessionActivated())
	log.Printf("Voice session %s activated", handles.id)
	return nil
}

func (s *Session) setup(ctx context.Context, opts ...ActivateOption) (*sessionHandles, error) {
	if s.captureFactory == nil {
		return nil, ErrNoCaptureClient
	}

	activateOptions := ActivateOptions{}
	for _, opt := range opts {
		opt(&activateOptions)
	}

	// The pipeline outlives the Activate call, so its context is detached
	// from the caller's cancelation.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handles := &sessionHandles{
		id:     uuid.NewString(),
		cancel: cancel,
		emit:   newCallbackEventEmitter(activateOptions),
	}

	capture, err := s.captureFactory(sessionCtx)
	if err != nil {
		return handles, err
	}
	handles.capture = capture
	encodingInfo := capture.EncodingInfo()
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}

	var remoteTranscription TranscriptionStreamer
	if s.transcriptionFactory != nil {
		remoteTranscription = s.transcriptionFactory()
	}
	var recognizer FallbackRecognizer
	if s.recognizerFactory != nil {
		recognizer = s.recognizerFactory()
	}
	handles.transcription = newTranscriptionTransport(
		remoteTranscription, recognizer, handles.emit, s.speaking, s.language, encodingInfo,
	)

	var remoteSynthesis SynthesisStreamer
	if s.synthesisFactory != nil {
		remoteSynthesis = s.synthesisFactory()
	}
	playback, _ := capture.(PlaybackClient)
	handles.synthesis = newSynthesisOrchestrator(
		remoteSynthesis, s.localSynthesizer, playback, handles.emit, s.speaking, s.marker,
		s.registry.SelectedVoice(), s.language, encodingInfo, s.completionWindow,
	)

	handles.segmenter = newUtteranceSegmenter(
		handles.transcription.feedSpeechStart,
		handles.transcription.feedSpeechEnd,
		s.detectorOptions...,
	)

	if err := handles.transcription.start(sessionCtx); err != nil {
		return handles, err
	}
	if err := handles.synthesis.start(sessionCtx); err != nil {
		return handles, err
	}
	if err := capture.StartCapture(sessionCtx, handles.segmenter.feed); err != nil {
		return handles, err
	}

	go s.registry.Refresh(sessionCtx)

	return handles, nil
}

// Observe inspects the conversation and speaks the newest assistant reply
// if it has not been played yet. Calls on an inactive session are no-ops.
func (s *Session) Observe(messages []Message) {
	s.mu.Lock()
	handles := s.handles
	s.mu.Unlock()

	if handles == nil {
		return
	}
	handles.synthesis.observe(copyMessages(messages))
}

// Deactivate tears the pipeline down and returns the session to inactive.
// It is safe to call regardless of state and repeatedly; every call after
// the first is a no-op.
func (s *Session) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.state = StateInactive
	s.mu.Unlock()

	if handles == nil {
		return nil
	}
	return s.teardown(ctx, handles)
}

// teardown releases every part of one activation. Each step runs even when
// an earlier one fails; errors are collected, never short-circuited.
func (s *Session) teardown(ctx context.Context, handles *sessionHandles) error {
	var err error
	handles.teardownOnce.Do(func() {
		errs := []error{}

		if handles.capture != nil {
			if stopErr := handles.capture.StopCapture(); stopErr != nil {
				errs = append(errs, stopErr)
			}
		}
		if handles.segmenter != nil {
			handles.segmenter.destroy()
		}
		if handles.transcription != nil {
			if closeErr := handles.transcription.close(ctx); closeErr != nil {
				errs = append(errs, closeErr)
			}
		}
		if handles.synthesis != nil {
			if closeErr := handles.synthesis.close(ctx); closeErr != nil {
				errs = append(errs, closeErr)
			}
		}
		if handles.capture != nil {
			handles.capture.Close()
		}
		handles.cancel()

		s.speaking.setUserSpeaking(false)
		s.speaking.setAgentSpeaking(false)

		handles.emit(events.NewSessionDeactivated())
		log.Printf("Voice session %s deactivated", handles.id)

		err = errors.Join(errs...)
	})
	return err
}

// Close releases long-lived resources. The session cannot be reactivated
// afterwards.
func (s *Session) Close(ctx context.Context) error {
	err := s.Deactivate(ctx)
	s.registry.close()
	return err
}
