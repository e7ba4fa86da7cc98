package vad

type DetectorOption func(*Detector)

// WithThresholds overrides the RMS levels used to enter and leave speech.
// The silence threshold should be below the speech threshold to preserve
// hysteresis.
func WithThresholds(speech, silence float64) DetectorOption {
	return func(d *Detector) {
		d.speechThreshold = speech
		d.silenceThreshold = silence
	}
}

// WithDebounceFrames overrides how many consecutive qualifying frames are
// required to enter and leave speech.
func WithDebounceFrames(speech, silence int) DetectorOption {
	return func(d *Detector) {
		d.speechFrames = speech
		d.silenceFrames = silence
	}
}

type SegmenterOption func(*Segmenter)

// WithDetector replaces the default detector.
func WithDetector(detector *Detector) SegmenterOption {
	return func(s *Segmenter) {
		if detector != nil {
			s.detector = detector
		}
	}
}

// WithPrerollFrames overrides how many recent silence frames are kept and
// prepended to an utterance so its onset is not clipped by detector debounce.
func WithPrerollFrames(frames int) SegmenterOption {
	return func(s *Segmenter) {
		if frames >= 0 {
			s.prerollLimit = frames
		}
	}
}

// WithSpeechStartCallback sets the callback invoked when an utterance begins.
func WithSpeechStartCallback(callback func()) SegmenterOption {
	return func(s *Segmenter) {
		if callback != nil {
			s.onSpeechStart = callback
		}
	}
}

// WithSpeechEndCallback sets the callback invoked when an utterance ends,
// receiving every sample captured for it.
func WithSpeechEndCallback(callback func(samples []float32)) SegmenterOption {
	return func(s *Segmenter) {
		if callback != nil {
			s.onSpeechEnd = callback
		}
	}
}
