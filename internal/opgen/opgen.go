// Package opgen provides the RMS helper behind the LOG_RMS diagnostic
// opcode, plus spectral helpers (Magnitudes, DominantFrequency) for
// checking generated signals. Grounded on the teacher's inputs/mic.go, which windows a history
// buffer with a Hanning window and runs github.com/mjibson/go-dsp/fft to
// derive a magnitude spectrum for visualization; reused here to verify
// generator output instead.
package opgen

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// RMS computes the root-mean-square of a block of samples, the same
// quantity the LOG_RMS opcode logs once per block.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// HanningWindow returns a size-length Hanning window, ported directly from
// the teacher's hanningWindow helper.
func HanningWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// Magnitudes windows samples with a Hanning window and returns the
// magnitude of each FFT bin, mirroring MicChannel.Update's fftMag
// computation.
func Magnitudes(samples []float32) []float64 {
	n := len(samples)
	window := HanningWindow(n)
	windowed := make([]float64, n)
	for i, s := range samples {
		windowed[i] = float64(s) * window[i]
	}

	result := fft.FFTReal(windowed)
	mags := make([]float64, len(result))
	for i, c := range result {
		mags[i] = math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
	}
	return mags
}

// DominantFrequency returns the frequency, in Hz, of the strongest bin in
// samples' spectrum below the Nyquist rate, for checking that a generated
// tone sits at its expected frequency.
func DominantFrequency(samples []float32, sampleRate float64) float64 {
	mags := Magnitudes(samples)
	n := len(mags)
	nyquist := n / 2

	bestBin := 0
	bestMag := -1.0
	for i := 1; i < nyquist; i++ {
		if mags[i] > bestMag {
			bestMag = mags[i]
			bestBin = i
		}
	}
	return float64(bestBin) * sampleRate / float64(n)
}
