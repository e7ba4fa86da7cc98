package bridge

import (
	"encoding/json"
	"fmt"
)

// Downlink control frames are JSON text messages. Audio travels as binary
// frames of 16-bit signed little-endian PCM at the negotiated sample rate.
//
// The service must send a Completed control frame after the last audio frame
// of a reply; the client treats it as the authoritative end-of-playback
// signal instead of guessing with a timer.
const (
	controlCompleted = "Completed"
	controlError     = "Error"
)

type controlMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

func decodeControl(msg []byte) (*controlMessage, error) {
	var parsed controlMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode control frame: %w", err)
	}

	if parsed.Type == "" {
		return nil, fmt.Errorf("control frame missing type")
	}

	return &parsed, nil
}
