// Package native speaks through the host's own synthesis command instead of
// the remote bridge. It is the fallback path used when the remote synthesis
// channel is unavailable, and the only path that reports genuine playback
// start and end boundaries.
package native

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/lkosir/voicepipe-core/core/synthesize"
)

// ErrUnavailable reports that no synthesizer executable exists on the host.
var ErrUnavailable = errors.New("no host speech synthesizer available")

// synthesizerCandidates are probed in order at first use.
var synthesizerCandidates = []string{"say", "espeak-ng", "espeak"}

// Engine shells out to the host synthesizer, one utterance at a time.
type Engine struct {
	command string

	mu     sync.Mutex
	cancel context.CancelFunc

	catalogOnce  sync.Once
	voiceCatalog *voiceCatalog
}

type EngineOption func(*Engine)

// WithCommand overrides synthesizer discovery with an explicit executable.
func WithCommand(command string) EngineOption {
	return func(e *Engine) {
		e.command = command
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) lookupCommand() (string, error) {
	if e.command != "" {
		return e.command, nil
	}

	for _, candidate := range synthesizerCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", ErrUnavailable
}

// Speak synthesizes one reply. SpeechStartedCallback fires once the
// synthesizer process is running; SpeechEndedCallback or ErrorCallback fires
// when it exits. A reply already being spoken is not interrupted; concurrent
// calls queue on the process, which matches the one-reply-at-a-time model.
func (e *Engine) Speak(ctx context.Context, text string, opts ...synthesize.SpeechOption) error {
	options := &synthesize.SpeechOptions{}
	for _, opt := range opts {
		opt(options)
	}

	command, err := e.lookupCommand()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, command, speakArgs(command, text, *options)...)

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start synthesizer: %w", err)
	}

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	if options.SpeechStartedCallback != nil {
		options.SpeechStartedCallback()
	}

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		if e.cancel != nil {
			e.cancel = nil
		}
		e.mu.Unlock()
		cancel()

		if err != nil && runCtx.Err() == nil {
			if options.ErrorCallback != nil {
				options.ErrorCallback(fmt.Errorf("synthesizer exited with error: %w", err))
			}
			return
		}

		if options.SpeechEndedCallback != nil {
			options.SpeechEndedCallback()
		}
	}()

	return nil
}

// Stop terminates any in-flight utterance.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

func speakArgs(command, text string, options synthesize.SpeechOptions) []string {
	args := []string{}

	voice := voiceName(options.Voice)
	base := command
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	switch base {
	case "say":
		if voice != "" {
			args = append(args, "-v", voice)
		}
	default: // espeak family
		switch {
		case voice != "":
			args = append(args, "-v", voice)
		case options.Language != "":
			args = append(args, "-v", strings.ToLower(options.Language))
		}
	}

	return append(args, text)
}

// voiceName strips the engine prefix from a voice URI, e.g. "say:Alex".
func voiceName(voiceURI string) string {
	if _, name, found := strings.Cut(voiceURI, ":"); found {
		return name
	}
	return voiceURI
}
