package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/events"
	"github.com/lkosir/voicepipe-core/core/synthesize"
)

const defaultCompletionWindow = 30 * time.Second

// spokenMessageMarker remembers which assistant replies have already been
// dispatched for playback. It outlives activations so a reply is never
// replayed when the session restarts with the conversation intact.
type spokenMessageMarker struct {
	mu     sync.Mutex
	spoken map[string]struct{}
}

func newSpokenMessageMarker() *spokenMessageMarker {
	return &spokenMessageMarker{spoken: map[string]struct{}{}}
}

// markIfNew marks the id and reports whether it was unseen. Marking happens
// before dispatch, so a reply is played at most once even when playback
// later fails.
func (m *spokenMessageMarker) markIfNew(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.spoken[id]; seen {
		return false
	}
	m.spoken[id] = struct{}{}
	return true
}

// synthesisOrchestrator turns assistant replies into audible speech. The
// remote streaming channel is preferred; the full reply text goes up in a
// single send, synthesized audio drains into the playback client, and a
// completion marker closes the playback span. When the remote channel is
// unavailable the host synthesis engine speaks instead, with its own
// genuine start and end callbacks. Either way a reply id is dispatched at
// most once.
type synthesisOrchestrator struct {
	remote   SynthesisStreamer
	local    LocalSynthesizer
	playback PlaybackClient

	emit     eventEmitter
	speaking *speakingState
	marker   *spokenMessageMarker

	voice            string
	language         string
	encodingInfo     audio.EncodingInfo
	completionWindow time.Duration

	ctx context.Context

	mu           sync.Mutex
	status       ChannelStatus
	remoteActive bool
	currentID    string
	guard        *time.Timer

	closed atomic.Bool
}

func newSynthesisOrchestrator(
	remote SynthesisStreamer,
	local LocalSynthesizer,
	playback PlaybackClient,
	emit eventEmitter,
	speaking *speakingState,
	marker *spokenMessageMarker,
	voice string,
	language string,
	encodingInfo audio.EncodingInfo,
	completionWindow time.Duration,
) *synthesisOrchestrator {
	if completionWindow <= 0 {
		completionWindow = defaultCompletionWindow
	}
	return &synthesisOrchestrator{
		remote:           remote,
		local:            local,
		playback:         playback,
		emit:             emit,
		speaking:         speaking,
		marker:           marker,
		voice:            voice,
		language:         language,
		encodingInfo:     encodingInfo,
		completionWindow: completionWindow,
		status:           StatusConnecting,
	}
}

func (o *synthesisOrchestrator) start(ctx context.Context) error {
	o.ctx = ctx
	o.setStatus(StatusConnecting)

	if o.remote != nil {
		err := o.remote.OpenStream(ctx,
			synthesize.WithVoice(o.voice),
			synthesize.WithLanguage(o.language),
			synthesize.WithEncodingInfo(o.encodingInfo),
			synthesize.WithAudioCallback(o.handleAudio),
			synthesize.WithCompletedCallback(o.handleCompleted),
			synthesize.WithErrorCallback(o.handleRemoteError),
			synthesize.WithDisconnectedCallback(o.handleRemoteDisconnect),
		)
		if err == nil {
			o.mu.Lock()
			o.remoteActive = true
			o.mu.Unlock()
			o.setStatus(StatusConnected)
			if o.playback != nil {
				if err := o.playback.StartPlayback(ctx); err != nil {
					log.Printf("Failed to start audio playback: %v", err)
				}
			}
			return nil
		}
		log.Printf("Remote synthesis unavailable, falling back to host synthesis: %v", err)
	}

	o.setStatus(StatusDisconnected)
	return nil
}

// observe inspects the conversation and dispatches the newest assistant
// reply if it has not been spoken yet.
func (o *synthesisOrchestrator) observe(messages []Message) {
	if o.closed.Load() {
		return
	}

	reply, ok := newestAssistantReply(messages)
	if !ok || reply.ID == "" || reply.Content == "" {
		return
	}
	if !o.marker.markIfNew(reply.ID) {
		return
	}

	o.mu.Lock()
	remote := o.remoteActive
	o.mu.Unlock()

	if remote {
		o.dispatchRemote(reply)
	} else {
		o.dispatchLocal(reply)
	}
}

func (o *synthesisOrchestrator) dispatchRemote(reply Message) {
	ctx := o.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := tracer.Start(ctx, "passing reply to synthesis")
	defer span.End()

	// The guard must exist before the text goes out: the completion marker
	// can arrive while SendText is still on the stack, and takeCurrent has
	// to find the timer it needs to stop. The guard window keeps a lost
	// marker from wedging the agent-speaking state forever.
	o.mu.Lock()
	o.currentID = reply.ID
	o.guard = time.AfterFunc(o.completionWindow, func() { o.guardExpired(reply.ID) })
	o.mu.Unlock()
	o.announceStarted(reply.ID)

	if err := o.remote.SendText(reply.Content); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.failPlayback(err)
		return
	}
	span.AddEvent("reply text sent", trace.WithAttributes(attribute.String("message.id", reply.ID)))
}

// guardExpired closes the playback span when no completion marker arrived
// within the window. The id check makes a timer that outlived its own span
// inert, so it can never close a later reply's span.
func (o *synthesisOrchestrator) guardExpired(messageID string) {
	o.mu.Lock()
	if o.currentID != messageID {
		o.mu.Unlock()
		return
	}
	o.currentID = ""
	o.guard = nil
	o.mu.Unlock()

	log.Println("No synthesis completion marker within the guard window, closing playback span")
	o.speaking.setAgentSpeaking(false)
	o.emit(events.NewAssistantPlaybackEnded(messageID))
}

func (o *synthesisOrchestrator) dispatchLocal(reply Message) {
	if o.local == nil {
		log.Println("No host synthesizer configured, dropping assistant reply playback")
		return
	}

	o.setCurrent(reply.ID)

	// The host engine reports genuine start and end of audible output, so
	// the playback span follows its callbacks rather than the dispatch.
	err := o.local.Speak(context.Background(), reply.Content,
		synthesize.WithVoice(o.voice),
		synthesize.WithLanguage(o.language),
		synthesize.WithSpeechStartedCallback(func() { o.announceStarted(reply.ID) }),
		synthesize.WithSpeechEndedCallback(o.endPlayback),
		synthesize.WithErrorCallback(o.failPlayback),
	)
	if err != nil {
		o.failPlayback(err)
	}
}

func (o *synthesisOrchestrator) setCurrent(messageID string) {
	o.mu.Lock()
	o.currentID = messageID
	o.mu.Unlock()
}

func (o *synthesisOrchestrator) announceStarted(messageID string) {
	o.speaking.setAgentSpeaking(true)
	o.emit(events.NewAssistantPlaybackStarted(messageID))
}

func (o *synthesisOrchestrator) endPlayback() {
	messageID, ok := o.takeCurrent()
	if !ok {
		return
	}
	o.speaking.setAgentSpeaking(false)
	o.emit(events.NewAssistantPlaybackEnded(messageID))
}

// failPlayback absorbs a synthesis error. Playback problems never tear the
// session down; the agent-speaking flag is always released.
func (o *synthesisOrchestrator) failPlayback(err error) {
	messageID, ok := o.takeCurrent()
	if !ok {
		return
	}
	log.Printf("Assistant reply playback failed: %v", err)
	o.speaking.setAgentSpeaking(false)
	o.emit(events.NewAssistantPlaybackFailed(messageID, err))
}

// takeCurrent clears the active playback span, stopping the guard timer.
// Only the first caller wins, so marker, guard, and error paths cannot
// double-close a span.
func (o *synthesisOrchestrator) takeCurrent() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentID == "" {
		return "", false
	}
	messageID := o.currentID
	o.currentID = ""
	if o.guard != nil {
		o.guard.Stop()
		o.guard = nil
	}
	return messageID, true
}

func (o *synthesisOrchestrator) handleAudio(chunk []byte) {
	if o.playback == nil {
		return
	}
	if err := o.playback.SendAudio(chunk); err != nil {
		log.Printf("Failed to queue synthesized audio for playback: %v", err)
	}
}

func (o *synthesisOrchestrator) handleCompleted() {
	o.endPlayback()
}

func (o *synthesisOrchestrator) handleRemoteError(err error) {
	o.failPlayback(err)
}

func (o *synthesisOrchestrator) handleRemoteDisconnect(err error) {
	if o.closed.Load() {
		return
	}
	if err != nil {
		log.Printf("Remote synthesis channel dropped: %v", err)
	}

	o.mu.Lock()
	o.remoteActive = false
	o.mu.Unlock()

	o.setStatus(StatusDisconnected)
	o.failPlayback(errors.New("synthesis channel dropped mid-playback"))
}

func (o *synthesisOrchestrator) setStatus(status ChannelStatus) {
	o.mu.Lock()
	if o.status == status && status != StatusConnecting {
		o.mu.Unlock()
		return
	}
	o.status = status
	o.mu.Unlock()

	o.emit(events.NewTransportStatusChanged(string(ChannelSynthesis), status.String()))
}

func (o *synthesisOrchestrator) currentStatus() ChannelStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// close interrupts any running playback and tears the channels down. Safe
// to call repeatedly.
func (o *synthesisOrchestrator) close(ctx context.Context) error {
	if o.closed.Swap(true) {
		return nil
	}

	o.mu.Lock()
	remote := o.remoteActive
	o.remoteActive = false
	if o.guard != nil {
		o.guard.Stop()
		o.guard = nil
	}
	o.currentID = ""
	o.mu.Unlock()

	o.speaking.setAgentSpeaking(false)

	errs := []error{}
	if remote && o.remote != nil {
		if err := o.remote.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if o.local != nil {
		if err := o.local.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.playback != nil {
		o.playback.ClearBuffer()
		if err := o.playback.StopPlayback(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
