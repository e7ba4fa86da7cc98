// Package bridge implements the remote synthesis channel of the voice
// bridge service.
//
// Wire contract: the client sends one text frame per agent reply containing
// the complete reply as plain UTF-8. The service streams synthesized audio
// back as binary PCM16 frames followed by a Completed control frame (see
// protocol.go). Malformed control frames are logged and dropped.
package bridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/synthesize"
)

// EnvBridgeURL names the environment variable holding the bridge base URL.
const EnvBridgeURL = "VOICEPIPE_BRIDGE_URL"

const speakPath = "/v1/speak"

// SynthesisClient holds the duplex synthesis channel for one session.
type SynthesisClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	closed bool
}

func NewSynthesisClient() *SynthesisClient {
	return &SynthesisClient{}
}

// OpenStream dials the synthesis endpoint and starts the read loop. The
// ConnectedCallback fires once the handshake completes; DisconnectedCallback
// fires exactly once on channel error or close.
func (c *SynthesisClient) OpenStream(ctx context.Context, opts ...synthesize.SpeechOption) error {
	options := &synthesize.SpeechOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(options)
	}

	baseURL, ok := os.LookupEnv(EnvBridgeURL)
	if !ok {
		return fmt.Errorf("bridge url not found in %s", EnvBridgeURL)
	}

	speakURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid bridge url: %w", err)
	}
	speakURL.Path = speakPath

	queryParams := speakURL.Query()
	queryParams.Set("encoding", options.EncodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(options.EncodingInfo.SampleRate))
	if options.Voice != "" {
		queryParams.Set("voice", options.Voice)
	}
	if options.Language != "" {
		queryParams.Set("language", options.Language)
	}
	speakURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open socket connection to bridge: %w", err)
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

	go c.readAndProcessMessages(conn, *options)

	return nil
}

// SendText transmits one complete agent reply.
func (c *SynthesisClient) SendText(text string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("synthesis channel is not open")
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return fmt.Errorf("failed to write reply to bridge: %w", err)
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

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close synthesis channel: %w", err)
	}
	return nil
}

func (c *SynthesisClient) readAndProcessMessages(conn *websocket.Conn, options synthesize.SpeechOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if err.Error() != "websocket: close 1000 (normal)" {
				log.Printf("Failed to read bridge synthesis message: %v", err)
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

		switch msgType {
		case websocket.BinaryMessage:
			if options.AudioCallback != nil {
				options.AudioCallback(msg)
			}
		case websocket.TextMessage:
			control, err := decodeControl(msg)
			if err != nil {
				log.Printf("Dropping malformed bridge synthesis frame: %v", err)
				continue
			}

			switch control.Type {
			case controlCompleted:
				if options.CompletedCallback != nil {
					options.CompletedCallback()
				}
			case controlError:
				if options.ErrorCallback != nil {
					options.ErrorCallback(fmt.Errorf("bridge synthesis error: %s", control.Message))
				}
			default:
				log.Printf("Dropping unknown bridge synthesis control type %q", control.Type)
			}
		default:
			log.Printf("Dropping unexpected bridge synthesis frame type %d", msgType)
		}
	}
}
