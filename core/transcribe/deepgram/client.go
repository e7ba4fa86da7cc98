// Package deepgram implements the remote transcription contract against the
// Deepgram listen websocket. It is an alternate remote provider to the
// bridge transport, selected by wiring it into the session instead.
package deepgram

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TranscriptionClient streams session audio to Deepgram and surfaces
// transcripts through the shared transcription callbacks.
type TranscriptionClient struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastMsgTs time.Time

	// unendedSegment tracks whether a speech-start was seen without a
	// matching end, so utterance-end messages can close it.
	unendedSegment        bool
	accumulatedTranscript string

	closed bool
}

func NewTranscriptionClient() *TranscriptionClient {
	return &TranscriptionClient{lastMsgTs: time.Now()}
}
