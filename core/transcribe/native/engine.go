// Package native runs continuous speech recognition against the host's own
// recognizer instead of the remote bridge. It is the fallback path used when
// the remote transcription channel is unavailable.
//
// The engine drives a recognizer executable that captures the microphone
// itself and reports results as JSON lines on stdout:
//
//	{"type":"speech_start"}
//	{"type":"partial","text":"hel"}
//	{"type":"final","text":"hello"}
//	{"type":"speech_end"}
//
// Any line that does not decode is logged and dropped.
package native

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"

	"github.com/lkosir/voicepipe-core/core/transcribe"
)

// ErrUnavailable reports that no recognizer executable exists on the host.
// This is terminal for local transcription for the session.
var ErrUnavailable = errors.New("no host speech recognizer available")

// recognizerCandidates are probed in order at engine start.
var recognizerCandidates = []string{"voicepipe-recognizer", "vosk-transcriber"}

// Engine wraps one continuous recognition run. A fresh engine is created per
// session activation; Stop is final.
type Engine struct {
	command string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type EngineOption func(*Engine)

// WithCommand overrides recognizer discovery with an explicit executable.
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

// Start launches continuous recognition. Returns ErrUnavailable when the
// host has no recognizer; other errors indicate the recognizer failed to
// launch.
func (e *Engine) Start(ctx context.Context, opts ...transcribe.TranscriptionOption) error {
	options := &transcribe.TranscriptionOptions{}
	for _, opt := range opts {
		opt(options)
	}

	command := e.command
	if command == "" {
		for _, candidate := range recognizerCandidates {
			if path, err := exec.LookPath(candidate); err == nil {
				command = path
				break
			}
		}
	}
	if command == "" {
		return ErrUnavailable
	}

	runCtx, cancel := context.WithCancel(ctx)

	args := []string{"--continuous"}
	if options.Language != "" {
		args = append(args, "--language", options.Language)
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to attach to recognizer output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start recognizer: %w", err)
	}

	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	go func() {
		defer close(done)

		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			processLine(scanner.Bytes(), *options)
		}

		if err := cmd.Wait(); err != nil && runCtx.Err() == nil {
			log.Printf("Recognizer exited with error: %v", err)
		}
	}()

	return nil
}

// Stop terminates recognition and waits for the reader to drain.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	return nil
}

type recognizerLine struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func processLine(line []byte, options transcribe.TranscriptionOptions) {
	if len(line) == 0 {
		return
	}

	var parsed recognizerLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		log.Printf("Failed to decode recognizer line: %v", err)
		return
	}

	switch parsed.Type {
	case "speech_start":
		if options.SpeechStartedCallback != nil {
			options.SpeechStartedCallback()
		}
	case "speech_end":
		if options.SpeechEndedCallback != nil {
			options.SpeechEndedCallback()
		}
	case "partial":
		if options.InterimTranscriptionCallback != nil {
			options.InterimTranscriptionCallback(parsed.Text)
		}
	case "final":
		if options.TranscriptionCallback != nil {
			options.TranscriptionCallback(parsed.Text)
		}
	default:
		log.Printf("Dropping unknown recognizer message type %q", parsed.Type)
	}
}
