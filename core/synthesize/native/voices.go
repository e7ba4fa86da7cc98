package native

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"

	"github.com/lkosir/voicepipe-core/core/synthesize"
)

// voiceCatalog caches the enumerated voice set and fans out change
// notifications. Host voice lists load lazily, so the first enumeration can
// complete well after the engine is constructed; subscribers receive the
// replacement whenever it lands.
type voiceCatalog struct {
	mu          sync.Mutex
	voices      []synthesize.Voice
	subscribers map[int]func()
	nextToken   int
}

func (e *Engine) catalog() *voiceCatalog {
	e.catalogOnce.Do(func() {
		e.voiceCatalog = &voiceCatalog{subscribers: map[int]func(){}}
	})
	return e.voiceCatalog
}

// Voices returns the current cached voice set.
func (e *Engine) Voices() []synthesize.Voice {
	catalog := e.catalog()
	catalog.mu.Lock()
	defer catalog.mu.Unlock()

	voices := make([]synthesize.Voice, len(catalog.voices))
	copy(voices, catalog.voices)
	return voices
}

// RefreshVoices re-enumerates host voices in the background. Subscribers are
// notified once the new set replaces the cached one. Enumeration failures are
// logged and leave the cached set unchanged.
func (e *Engine) RefreshVoices(ctx context.Context) {
	catalog := e.catalog()
	go func() {
		voices, err := e.listVoices(ctx)
		if err != nil {
			log.Printf("Failed to enumerate host voices: %v", err)
			return
		}

		catalog.mu.Lock()
		catalog.voices = voices
		subscribers := make([]func(), 0, len(catalog.subscribers))
		for _, subscriber := range catalog.subscribers {
			subscribers = append(subscribers, subscriber)
		}
		catalog.mu.Unlock()

		for _, subscriber := range subscribers {
			subscriber()
		}
	}()
}

// SubscribeVoicesChanged registers a callback invoked after every voice set
// replacement. The returned function unsubscribes it.
func (e *Engine) SubscribeVoicesChanged(callback func()) func() {
	catalog := e.catalog()
	catalog.mu.Lock()
	defer catalog.mu.Unlock()

	token := catalog.nextToken
	catalog.nextToken++
	catalog.subscribers[token] = callback

	return func() {
		catalog.mu.Lock()
		defer catalog.mu.Unlock()
		delete(catalog.subscribers, token)
	}
}

func (e *Engine) listVoices(ctx context.Context) ([]synthesize.Voice, error) {
	command, err := e.lookupCommand()
	if err != nil {
		return nil, err
	}

	base := command
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}

	switch base {
	case "say":
		output, err := exec.CommandContext(ctx, command, "-v", "?").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list say voices: %w", err)
		}
		return parseSayVoices(string(output)), nil
	default:
		output, err := exec.CommandContext(ctx, command, "--voices").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list espeak voices: %w", err)
		}
		return parseEspeakVoices(string(output)), nil
	}
}

// parseSayVoices parses `say -v ?` output, lines like:
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(output string) []synthesize.Voice {
	voices := []synthesize.Voice{}
	for _, line := range strings.Split(output, "\n") {
		name, rest, found := strings.Cut(strings.TrimSpace(line), " ")
		if !found || name == "" {
			continue
		}

		lang, _, _ := strings.Cut(strings.TrimSpace(rest), " ")
		voices = append(voices, synthesize.Voice{
			URI:  "say:" + name,
			Name: name,
			Lang: strings.ReplaceAll(lang, "_", "-"),
		})
	}
	return voices
}

// parseEspeakVoices parses `espeak --voices` output, skipping the header:
//
//	Pty Language Age/Gender VoiceName          File          Other Languages
//	 5  en-US          M english-us           en-us
func parseEspeakVoices(output string) []synthesize.Voice {
	voices := []synthesize.Voice{}
	for i, line := range strings.Split(output, "\n") {
		if i == 0 {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		voices = append(voices, synthesize.Voice{
			URI:  "espeak:" + fields[4],
			Name: fields[3],
			Lang: fields[1],
		})
	}
	return voices
}
