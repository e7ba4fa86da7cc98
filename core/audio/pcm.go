package audio

import (
	"encoding/binary"
	"math"
)

// PCM16FromFloat32 converts float32 samples in [-1, 1] to 16-bit signed
// little-endian PCM. Out-of-range samples are clamped before conversion.
func PCM16FromFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := math.Floor(float64(sample) * 32767)
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}

		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(scaled)))
	}

	return out
}

// Float32FromPCM16 decodes 16-bit signed little-endian PCM into float32
// samples in [-1, 1]. A trailing odd byte is ignored.
func Float32FromPCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}

	return out
}
