package audio

import (
	"encoding/binary"
	"testing"
)

func TestPCM16FromFloat32EncodesHalfScaleSamples(t *testing.T) {
	buffer := PCM16FromFloat32([]float32{0.5, -0.5})

	if len(buffer) != 4 {
		t.Fatalf("expected 4 bytes for 2 samples, got %d", len(buffer))
	}

	first := int16(binary.LittleEndian.Uint16(buffer[0:]))
	second := int16(binary.LittleEndian.Uint16(buffer[2:]))

	if first != 16383 {
		t.Fatalf("expected first sample to encode to 16383, got %d", first)
	}
	if second != -16384 {
		t.Fatalf("expected second sample to encode to -16384, got %d", second)
	}
}

func TestPCM16FromFloat32ClampsOutOfRangeSamples(t *testing.T) {
	buffer := PCM16FromFloat32([]float32{1.5, -1.5})

	first := int16(binary.LittleEndian.Uint16(buffer[0:]))
	second := int16(binary.LittleEndian.Uint16(buffer[2:]))

	if first != 32767 {
		t.Fatalf("expected positive overflow to clamp to 32767, got %d", first)
	}
	if second != -32768 {
		t.Fatalf("expected negative overflow to clamp to -32768, got %d", second)
	}
}

func TestFloat32FromPCM16RoundTripsSilence(t *testing.T) {
	samples := Float32FromPCM16([]byte{0, 0, 0, 0})

	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	for i, sample := range samples {
		if sample != 0 {
			t.Fatalf("expected silence at index %d, got %f", i, sample)
		}
	}
}
