package vad

// Segmenter partitions a continuous frame stream into utterances. It owns
// the sample buffer for the current utterance until the end callback hands
// it off; the buffer is never retained afterwards.
type Segmenter struct {
	detector *Detector

	onSpeechStart func()
	onSpeechEnd   func(samples []float32)

	// preroll keeps the most recent silence frames so the debounced start
	// does not clip the utterance onset.
	preroll      [][]float32
	prerollLimit int

	buffer      []float32
	inUtterance bool
}

func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	segmenter := &Segmenter{
		detector:      NewDetector(),
		onSpeechStart: func() {},
		onSpeechEnd:   func([]float32) {},
		prerollLimit:  5,
	}

	for _, opt := range opts {
		opt(segmenter)
	}

	return segmenter
}

// Feed folds one frame into the segmenter, invoking the start callback on
// an utterance boundary and the end callback with the captured samples once
// the utterance closes. Boundaries are reported in emission order.
func (s *Segmenter) Feed(frame []float32) {
	inSpeech := s.detector.ProcessFrame(frame)

	switch {
	case inSpeech && !s.inUtterance:
		s.inUtterance = true
		s.buffer = s.buffer[:0]
		for _, kept := range s.preroll {
			s.buffer = append(s.buffer, kept...)
		}
		s.preroll = s.preroll[:0]
		s.buffer = append(s.buffer, frame...)
		s.onSpeechStart()

	case inSpeech:
		s.buffer = append(s.buffer, frame...)

	case !inSpeech && s.inUtterance:
		s.inUtterance = false
		s.buffer = append(s.buffer, frame...)
		samples := make([]float32, len(s.buffer))
		copy(samples, s.buffer)
		s.buffer = s.buffer[:0]
		s.onSpeechEnd(samples)

	default:
		s.keepPreroll(frame)
	}
}

// Flush closes a still-open utterance, invoking the end callback with
// whatever was captured so far. Used on teardown so no utterance is dropped.
func (s *Segmenter) Flush() {
	if !s.inUtterance {
		return
	}

	s.inUtterance = false
	samples := make([]float32, len(s.buffer))
	copy(samples, s.buffer)
	s.buffer = s.buffer[:0]
	s.onSpeechEnd(samples)
}

// Reset drops all buffered state without invoking callbacks.
func (s *Segmenter) Reset() {
	s.detector.Reset()
	s.inUtterance = false
	s.buffer = s.buffer[:0]
	s.preroll = s.preroll[:0]
}

func (s *Segmenter) keepPreroll(frame []float32) {
	if s.prerollLimit == 0 {
		return
	}

	kept := make([]float32, len(frame))
	copy(kept, frame)
	s.preroll = append(s.preroll, kept)
	if len(s.preroll) > s.prerollLimit {
		s.preroll = s.preroll[1:]
	}
}
