package buftype

import (
	"encoding/binary"
	"math"
)

// AudioBlock is N float32 samples, where N is the engine's current block
// size. Mix sums elementwise; Scale multiplies elementwise.
type AudioBlock struct{}

func (AudioBlock) Size(host HostState) uint32 { return host.BlockSize * 4 }

func (AudioBlock) Setup(HostState, []byte) error { return nil }

func (AudioBlock) Cleanup(HostState, []byte) error { return nil }

func (AudioBlock) Clear(ptr []byte) error {
	for i := range ptr {
		ptr[i] = 0
	}
	return nil
}

func (AudioBlock) Mix(src, dst []byte) error {
	n := len(dst) / 4
	for i := 0; i < n; i++ {
		s := math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		d := math.Float32frombits(binary.LittleEndian.Uint32(dst[i*4:]))
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s+d))
	}
	return nil
}

func (AudioBlock) Scale(ptr []byte, factor float32) error {
	n := len(ptr) / 4
	for i := 0; i < n; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(ptr[i*4:]))
		binary.LittleEndian.PutUint32(ptr[i*4:], math.Float32bits(v*factor))
	}
	return nil
}

// Samples reinterprets an audio-block buffer as a float32 slice view, used
// by generator opcodes (NOISE, SINE) and the backend for channel output.
func Samples(ptr []byte) []float32 {
	n := len(ptr) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(ptr[i*4:]))
	}
	return out
}

// PutSamples writes a float32 slice into an audio-block buffer.
func PutSamples(ptr []byte, samples []float32) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(ptr[i*4:], math.Float32bits(v))
	}
}
