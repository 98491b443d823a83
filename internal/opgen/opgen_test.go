package opgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRMSOfSilenceIsZero(t *testing.T) {
	require.Equal(t, float32(0), RMS(make([]float32, 64)))
}

func TestRMSOfConstantSignal(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 2.0
	}
	require.InDelta(t, 2.0, RMS(samples), 1e-6)
}

func TestDominantFrequencyFindsSineTone(t *testing.T) {
	const sampleRate = 48000.0
	const freq = 440.0
	const n = 2048

	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}

	got := DominantFrequency(samples, sampleRate)
	require.InDelta(t, freq, got, sampleRate/float64(n)*2)
}
