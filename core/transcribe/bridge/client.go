// Package bridge implements the remote transcription channel of the voice
// bridge service.
//
// Wire contract: the client sends 16-bit signed little-endian PCM as binary
// websocket frames, one frame per utterance. The service answers with text
// frames; each text frame is the finalized transcript for the preceding
// utterance and is forwarded verbatim. Any other frame is a protocol decode
// failure: logged and dropped.
package bridge

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/transcribe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EnvBridgeURL names the environment variable holding the bridge base URL,
// e.g. "wss://bridge.example.com".
const EnvBridgeURL = "VOICEPIPE_BRIDGE_URL"

const listenPath = "/v1/listen"

// TranscriptionClient streams utterance audio to the bridge transcription
// endpoint and forwards transcripts from it. One client serves one session;
// it is not reusable after Close.
type TranscriptionClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	closed bool
}

func NewTranscriptionClient() *TranscriptionClient {
	return &TranscriptionClient{}
}

// Transcribe opens the duplex channel and starts the read loop. The
// ConnectedCallback fires once the websocket handshake completes; the
// DisconnectedCallback fires exactly once when the channel errors or closes.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...transcribe.TranscriptionOption) error {
	options := &transcribe.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	baseURL, ok := os.LookupEnv(EnvBridgeURL)
	if !ok {
		return fmt.Errorf("bridge url not found in %s", EnvBridgeURL)
	}

	if err := probeHealth(ctx, baseURL); err != nil {
		return fmt.Errorf("bridge health probe failed: %w", err)
	}

	listenURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid bridge url: %w", err)
	}
	listenURL.Path = listenPath

	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	if options.Language != "" {
		queryParams.Set("language", options.Language)
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open socket connection to bridge: %w", err)
	}

	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("transcription client already closed")
	}
	c.conn = conn
	c.connMu.Unlock()

	if options.ConnectedCallback != nil {
		options.ConnectedCallback()
	}

	go c.readAndProcessMessages(conn, *options)

	return nil
}

// SendAudio transmits one utterance as a single binary frame.
func (c *TranscriptionClient) SendAudio(pcm []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("transcription channel is not open")
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to write utterance to bridge: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) Close(_ context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close transcription channel: %w", err)
	}
	return nil
}

func (c *TranscriptionClient) readAndProcessMessages(conn *websocket.Conn, options transcribe.TranscriptionOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Printf("Failed to read bridge transcription message: %v", err)
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

		if msgType != websocket.TextMessage {
			log.Printf("Dropping unexpected bridge transcription frame type %d", msgType)
			continue
		}

		if options.TranscriptionCallback != nil {
			options.TranscriptionCallback(string(msg))
		}
	}
}

// probeHealth checks the bridge over plain HTTP before dialing so a dead
// service fails fast instead of hanging in the websocket handshake.
func probeHealth(ctx context.Context, baseURL string) error {
	healthURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid bridge url: %w", err)
	}

	switch healthURL.Scheme {
	case "wss":
		healthURL.Scheme = "https"
	case "ws":
		healthURL.Scheme = "http"
	}
	healthURL.Path = "/healthz"
	healthURL.RawQuery = ""

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build health probe request: %w", err)
	}

	client := http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}
