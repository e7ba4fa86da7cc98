package deepgram

import (
	"context"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/lkosir/voicepipe-core/core/synthesize"
)

func TestProcessMessageBinaryReachesAudioCallback(t *testing.T) {
	client := NewSynthesisClient()
	chunks := [][]byte{}
	options := synthesize.SpeechOptions{
		AudioCallback: func(audio []byte) { chunks = append(chunks, audio) },
	}

	client.processMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}, options)

	if len(chunks) != 1 || len(chunks[0]) != 4 {
		t.Fatalf("expected one audio chunk, got %v", chunks)
	}
}

func TestProcessMessageFlushedMapsToCompletion(t *testing.T) {
	client := NewSynthesisClient()
	completions := 0
	options := synthesize.SpeechOptions{
		CompletedCallback: func() { completions++ },
	}

	client.processMessage(websocket.TextMessage, []byte(`{"type":"Flushed"}`), options)

	if completions != 1 {
		t.Fatalf("expected the flushed confirmation to complete the reply, got %d", completions)
	}
}

func TestProcessMessageIgnoresWarningsAndMalformedPayloads(t *testing.T) {
	client := NewSynthesisClient()
	completions := 0
	options := synthesize.SpeechOptions{
		CompletedCallback: func() { completions++ },
	}

	client.processMessage(websocket.TextMessage, []byte(`{"type":"Warning","description":"slow"}`), options)
	client.processMessage(websocket.TextMessage, []byte("not json"), options)

	if completions != 0 {
		t.Fatalf("expected no completion from warnings or malformed payloads, got %d", completions)
	}
}

func TestSendTextWithoutConnectionFails(t *testing.T) {
	client := NewSynthesisClient()

	if err := client.SendText("hello"); err == nil {
		t.Fatalf("expected an error when sending without a connection")
	}
}

func TestVoiceModelStripsEnginePrefix(t *testing.T) {
	if got := voiceModel("deepgram:aura-luna-en"); got != "aura-luna-en" {
		t.Fatalf("expected the engine prefix to be stripped, got %q", got)
	}
	if got := voiceModel("aura-luna-en"); got != "aura-luna-en" {
		t.Fatalf("expected bare model names to pass through, got %q", got)
	}
}

func TestAvailableVoicesCarryEnginePrefix(t *testing.T) {
	voices := AvailableVoices()
	if len(voices) == 0 {
		t.Fatalf("expected at least one speak model")
	}
	for _, voice := range voices {
		if !strings.HasPrefix(voice.URI, "deepgram:") {
			t.Fatalf("expected a deepgram voice URI, got %q", voice.URI)
		}
	}
}

func TestCloseWithoutConnectionIsNoop(t *testing.T) {
	client := NewSynthesisClient()

	if err := client.Close(context.Background()); err != nil {
		t.Fatalf("expected closing an unopened client to be a no-op, got %v", err)
	}
	if err := client.Close(context.Background()); err != nil {
		t.Fatalf("expected repeated close to be a no-op, got %v", err)
	}
}
