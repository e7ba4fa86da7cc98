// Package vad implements energy-based voice activity detection over
// float32 sample frames in [-1, 1].
package vad

import "math"

// Detector classifies frames as speech or silence using RMS energy with
// hysteresis so the state does not flicker around the thresholds.
type Detector struct {
	speechThreshold  float64
	silenceThreshold float64
	speechFrames     int
	silenceFrames    int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewDetector returns a detector tuned for 16kHz capture with ~20ms frames.
func NewDetector(opts ...DetectorOption) *Detector {
	detector := &Detector{
		speechThreshold:  0.015,
		silenceThreshold: 0.008,
		speechFrames:     3,
		silenceFrames:    30,
	}

	for _, opt := range opts {
		opt(detector)
	}

	return detector
}

// ProcessFrame folds one frame into the detector state and reports
// whether the detector currently considers the stream to be speech.
func (d *Detector) ProcessFrame(frame []float32) bool {
	level := rms(frame)

	if d.inSpeech {
		if level < d.silenceThreshold {
			d.silenceCount++
			d.speechCount = 0
			if d.silenceCount >= d.silenceFrames {
				d.inSpeech = false
				d.silenceCount = 0
			}
		} else {
			d.silenceCount = 0
		}
	} else {
		if level >= d.speechThreshold {
			d.speechCount++
			d.silenceCount = 0
			if d.speechCount >= d.speechFrames {
				d.inSpeech = true
				d.speechCount = 0
			}
		} else {
			d.speechCount = 0
		}
	}

	return d.inSpeech
}

// InSpeech reports the current detector state without folding a frame.
func (d *Detector) InSpeech() bool { return d.inSpeech }

// Reset clears all detector state.
func (d *Detector) Reset() {
	d.inSpeech = false
	d.speechCount = 0
	d.silenceCount = 0
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(frame)))
}
