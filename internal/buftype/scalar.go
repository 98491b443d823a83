package buftype

import (
	"encoding/binary"
	"math"
)

// scalarSize is the wire footprint of a Scalar buffer: a float32 value
// followed by a uint32 generation counter.
const scalarSize = 8

// Scalar is a control-rate float paired with a generation counter. Mix sums
// the values and takes max(generation)+1; Scale multiplies the value and
// bumps the generation by one.
type Scalar struct{}

func (Scalar) Size(HostState) uint32 { return scalarSize }

func (Scalar) Setup(HostState, []byte) error { return nil }

func (Scalar) Cleanup(HostState, []byte) error { return nil }

func (Scalar) Clear(ptr []byte) error {
	binary.LittleEndian.PutUint32(ptr[0:4], 0)
	binary.LittleEndian.PutUint32(ptr[4:8], 0)
	return nil
}

func (Scalar) Mix(src, dst []byte) error {
	sv, sg := readScalar(src)
	dv, dg := readScalar(dst)
	gen := sg
	if dg > gen {
		gen = dg
	}
	writeScalar(dst, sv+dv, gen+1)
	return nil
}

func (Scalar) Scale(ptr []byte, factor float32) error {
	v, g := readScalar(ptr)
	writeScalar(ptr, v*factor, g+1)
	return nil
}

func readScalar(buf []byte) (value float32, generation uint32) {
	value = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	generation = binary.LittleEndian.Uint32(buf[4:8])
	return value, generation
}

func writeScalar(buf []byte, value float32, generation uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(value))
	binary.LittleEndian.PutUint32(buf[4:8], generation)
}

// ScalarValue and ScalarGeneration expose the decoded fields for tests and
// diagnostic opcodes without re-deriving the wire layout elsewhere.
func ScalarValue(buf []byte) float32 {
	v, _ := readScalar(buf)
	return v
}

func ScalarGeneration(buf []byte) uint32 {
	_, g := readScalar(buf)
	return g
}

// SetScalar writes a raw (value, generation) pair, used by the SET_FLOAT
// opcode and by tests constructing fixtures.
func SetScalar(buf []byte, value float32, generation uint32) {
	writeScalar(buf, value, generation)
}
