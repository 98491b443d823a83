// Package buftype implements the closed set of buffer kinds that back every
// signal in the engine's arena: a float scalar with a generation counter, an
// audio block, an event sequence, and a cross-process condition. It mirrors
// the BufferType/clear_buffer/mix_buffers/mul_buffer contract of
// original_source/noisicore/buffers.{h,cpp}, generalized to a Go interface
// implemented once per kind.
package buftype

import "github.com/noisicaa-go/engine/internal/engineerr"

// HostState carries the per-engine state a buffer type needs to size or
// initialize itself: the current block size. It is deliberately tiny — buffer types must not reach back
// into the VM or processors.
type HostState struct {
	BlockSize uint32
}

// Type is the uniform per-signal-kind interface consumed by opcodes and
// processors. Clear/Mix/Scale run on the audio thread; the scalar, audio
// block and condition types do not allocate in them, while EventSeq.Mix
// allocates its decoded event lists and merge scratch on every call.
type Type interface {
	// Size returns the buffer's byte footprint for the current host state.
	Size(host HostState) uint32
	// Setup performs one-time, per-buffer initialization (e.g. the
	// cross-process condition's mutex/condvar attributes).
	Setup(host HostState, ptr []byte) error
	// Cleanup releases any one-time setup resources. Never fails; callers
	// log a warning on error return instead of propagating it.
	Cleanup(host HostState, ptr []byte) error
	// Clear resets ptr to this type's identity value.
	Clear(ptr []byte) error
	// Mix combines src into dst in place.
	Mix(src, dst []byte) error
	// Scale multiplies ptr's value(s) by factor in place.
	Scale(ptr []byte, factor float32) error
}

// errNotMixable is returned by types (event sequences handle mix specially;
// conditions forbid it outright) that don't support Mix.
func errNotMixable(kind string) error {
	return engineerr.InvalidOperation("buffer type %s does not support mix", kind)
}

// errNotScalable is returned by types that forbid Scale.
func errNotScalable(kind string) error {
	return engineerr.InvalidOperation("buffer type %s does not support scale", kind)
}
