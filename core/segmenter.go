package pipeline

import (
	"sync"

	"github.com/lkosir/voicepipe-core/core/audio"
	"github.com/lkosir/voicepipe-core/core/vad"
)

// One PCM16 sample spans two bytes; shorter buffers carry no audio.
const minPCMBuffer = 2

// utteranceSegmenter sits between the capture client and the transcription
// transport. It decodes the raw capture stream into float32 frames, runs
// voice activity detection, and hands complete utterances upstream.
type utteranceSegmenter struct {
	segmenter *vad.Segmenter

	destroyOnce sync.Once
}

func newUtteranceSegmenter(
	onSpeechStart func(),
	onSpeechEnd func(samples []float32),
	detectorOpts ...vad.DetectorOption,
) *utteranceSegmenter {
	return &utteranceSegmenter{
		segmenter: vad.NewSegmenter(
			vad.WithDetector(vad.NewDetector(detectorOpts...)),
			vad.WithSpeechStartCallback(onSpeechStart),
			vad.WithSpeechEndCallback(onSpeechEnd),
		),
	}
}

// feed accepts one capture buffer of PCM16 little-endian bytes.
func (s *utteranceSegmenter) feed(pcm []byte) {
	if len(pcm) < minPCMBuffer {
		return
	}
	s.segmenter.Feed(audio.Float32FromPCM16(pcm))
}

// destroy closes any open utterance and drops buffered audio. It is safe to
// call more than once; only the first call flushes.
func (s *utteranceSegmenter) destroy() {
	s.destroyOnce.Do(func() {
		s.segmenter.Flush()
		s.segmenter.Reset()
	})
}
