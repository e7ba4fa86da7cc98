// Package deepgram implements the remote synthesis contract against the
// Deepgram speak websocket. It is an alternate remote provider to the bridge
// transport.
//
// Each reply is sent as one Speak message followed by a Flush; the Flushed
// confirmation from the service maps onto the completion callback, so the
// orchestrator gets a genuine end-of-reply signal rather than a timer.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/synthesize"
)

type deepgramVoice string

const (
	VoiceAsteria deepgramVoice = "aura-asteria-en"
	VoiceLuna    deepgramVoice = "aura-luna-en"
	VoiceOrion   deepgramVoice = "aura-orion-en"
	VoiceArcas   deepgramVoice = "aura-arcas-en"

	defaultVoice = VoiceAsteria
)

// AvailableVoices lists the speak models this client accepts, exposed in the
// shared voice shape so the capability registry can surface them.
func AvailableVoices() []synthesize.Voice {
	models := []deepgramVoice{VoiceAsteria, VoiceLuna, VoiceOrion, VoiceArcas}
	voices := make([]synthesize.Voice, 0, len(models))
	for _, model := range models {
		voices = append(voices, synthesize.Voice{
			URI:  "deepgram:" + string(model),
			Name: string(model),
			Lang: "en-US",
		})
	}
	return voices
}

// SynthesisClient holds the speak websocket for one session.
type SynthesisClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	closed bool
}

func NewSynthesisClient() *SynthesisClient {
	return &SynthesisClient{}
}

func (c *SynthesisClient) OpenStream(ctx context.Context, opts ...synthesize.SpeechOption) error {
	options := &synthesize.SpeechOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	voice := defaultVoice
	if options.Voice != "" {
		voice = deepgramVoice(voiceModel(options.Voice))
	}

	conn, err := connectWebsocket(voice, options.EncodingInfo)
	if err != nil {
		return fmt.Errorf("failed to open websocket: %w", err)
	}

	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("synthesis client already closed")
	}
	c.conn = conn
	c.connMu.Unlock()

	if options.ConnectedCallback != nil {
		options.ConnectedCallback()
	}

	go c.readAndProcessMessages(ctx, conn, *options)

	return nil
}

func connectWebsocket(voice deepgramVoice, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(voice))
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.Dial(
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

// SendText sends one complete reply followed by a flush so the service
// synthesizes it immediately.
func (c *SynthesisClient) SendText(text string) error {
	if err := c.sendWebsocketMessage(sendTextMsg(text)); err != nil {
		return fmt.Errorf("failed to send text to deepgram: %w", err)
	}
	if err := c.sendWebsocketMessage(flushMsg); err != nil {
		return fmt.Errorf("failed to flush deepgram buffer: %w", err)
	}
	return nil
}

func (c *SynthesisClient) Close(_ context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	if err := conn.WriteJSON(closeMsg); err != nil {
		if aggressiveCloseErr := conn.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close websocket: %w", aggressiveCloseErr)
		}
	}
	return nil
}

func (c *SynthesisClient) readAndProcessMessages(_ context.Context, conn *websocket.Conn, options synthesize.SpeechOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Printf("Websocket read error: %v", err)
			}

			c.connMu.Lock()
			alreadyClosed := c.closed
			c.conn = nil
			c.connMu.Unlock()
			conn.Close()

			if !alreadyClosed && options.DisconnectedCallback != nil {
				options.DisconnectedCallback(err)
			}
			return
		}

		c.processMessage(msgType, msg, options)
	}
}

func (c *SynthesisClient) processMessage(msgType int, msg []byte, options synthesize.SpeechOptions) {
	switch msgType {
	case websocket.BinaryMessage:
		if options.AudioCallback != nil {
			options.AudioCallback(msg)
		}
	case websocket.TextMessage:
		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			log.Printf("Failed to unmarshal deepgram message: %v", err)
			return
		}

		switch parsedMsg.Type {
		case "Flushed":
			if options.CompletedCallback != nil {
				options.CompletedCallback()
			}
		case "Warning":
			log.Printf("Deepgram speak warning: %s", string(msg))
		}
	}
}

type websocketMessage struct {
	Type string `json:"type"`
}

var (
	sendTextMsg = func(text string) struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} {
		return struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "Speak", Text: text}
	}
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

func (c *SynthesisClient) sendWebsocketMessage(msg any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("websocket connection closed")
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

// voiceModel strips the engine prefix from a voice URI, e.g.
// "deepgram:aura-asteria-en".
func voiceModel(voiceURI string) string {
	if len(voiceURI) > len("deepgram:") && voiceURI[:len("deepgram:")] == "deepgram:" {
		return voiceURI[len("deepgram:"):]
	}
	return voiceURI
}
