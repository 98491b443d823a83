package vm

import (
	"math"
	"math/rand"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/opgen"
	"github.com/noisicaa-go/engine/internal/processor"
)

func toProcessorContext(ctx *BlockContext, st *execState) processor.Context {
	return processor.Context{BlockSize: ctx.BlockSize, SamplePos: ctx.SamplePos}
}

// execState is the mutable interpreter state threaded through one
// process_block call, matching original_source/noisicore/vm.h's
// ProgramState (minus the fields vm.go already owns directly).
type execState struct {
	program  *Program
	backend  Backend
	opIndex  int
	ended    bool
	logf     func(format string, args ...any)
}

func runEnd(ctx *BlockContext, st *execState, args []Arg) error {
	st.ended = true
	return nil
}

func runCopy(ctx *BlockContext, st *execState, args []Arg) error {
	dst := st.program.Buffer(int(args[0].Int))
	src := st.program.Buffer(int(args[1].Int))
	if len(dst) != len(src) {
		return engineerr.InvalidOperation("COPY size mismatch: %d vs %d", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

func runClear(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	kind := st.program.spec.bufferKind(idx)
	return buftype.ByKind(kind).Clear(st.program.Buffer(idx))
}

func runMix(ctx *BlockContext, st *execState, args []Arg) error {
	srcIdx := int(args[0].Int)
	dstIdx := int(args[1].Int)
	kind := st.program.spec.bufferKind(dstIdx)
	return buftype.ByKind(kind).Mix(st.program.Buffer(srcIdx), st.program.Buffer(dstIdx))
}

func runMul(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	factor := args[1].Float
	kind := st.program.spec.bufferKind(idx)
	return buftype.ByKind(kind).Scale(st.program.Buffer(idx), factor)
}

func runSetFloat(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	buf := st.program.Buffer(idx)
	buftype.SetScalar(buf, args[1].Float, buftype.ScalarGeneration(buf)+1)
	return nil
}

func runOutput(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	channel := args[1].String
	if st.backend == nil {
		return engineerr.InvalidOperation("OUTPUT with no backend attached")
	}
	return st.backend.Output(ctx, channel, st.program.Buffer(idx))
}

func runFetchBuffer(ctx *BlockContext, st *execState, args []Arg) error {
	inName := args[0].String
	outIdx := int(args[1].Int)
	outBuf := st.program.Buffer(outIdx)

	in, ok := ctx.Buffers[inName]
	if !ok {
		kind := st.program.spec.bufferKind(outIdx)
		return buftype.ByKind(kind).Clear(outBuf)
	}
	if len(in.Data) != len(outBuf) {
		return engineerr.InvalidOperation("FETCH_BUFFER size mismatch for %q", inName)
	}
	copy(outBuf, in.Data)
	return nil
}

// runFetchMessages copies every message whose "tag" label equals the
// requested integer tag (written in decimal; it stands in for the
// original's LV2 atom labelset object) into an event-seq buffer, each at
// frame 0. Other labels are not compared. Completes
// what opcodes.cpp left as "not implemented yet".
func runFetchMessages(ctx *BlockContext, st *execState, args []Arg) error {
	labelTag := args[0].Int
	outIdx := int(args[1].Int)
	outBuf := st.program.Buffer(outIdx)

	var events []buftype.Event
	for _, msg := range ctx.Messages {
		tagStr, ok := msg.Labels["tag"]
		if !ok {
			continue
		}
		if tagStr != itoa(labelTag) {
			continue
		}
		events = append(events, buftype.Event{Frame: 0, Payload: msg.Data})
	}
	if err := buftype.EventSeq{}.Clear(outBuf); err != nil {
		return err
	}
	return buftype.WriteEvents(outBuf, events)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits [20]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}

// runFetchParameter reads a named program-level parameter into a scalar
// buffer, defaulting to zero when unset. Completes what opcodes.cpp left
// as "not implemented yet".
func runFetchParameter(ctx *BlockContext, st *execState, args []Arg) error {
	outIdx := int(args[1].Int)
	outBuf := st.program.Buffer(outIdx)
	v, ok := st.program.parameters[args[0].String]
	if !ok {
		buftype.SetScalar(outBuf, 0, buftype.ScalarGeneration(outBuf)+1)
		return nil
	}
	buftype.SetScalar(outBuf, v, buftype.ScalarGeneration(outBuf)+1)
	return nil
}

func runNoise(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	buf := st.program.Buffer(idx)
	samples := buftype.Samples(buf)
	for i := range samples {
		samples[i] = 2.0*rand.Float32() - 1.0
	}
	buftype.PutSamples(buf, samples)
	return nil
}

// runSine completes opcodes.cpp's "SINE not implemented yet": an
// additive-free pure sine generator whose phase persists per-instruction
// across blocks in the owning Program.
func runSine(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	freq := args[1].Float
	buf := st.program.Buffer(idx)
	samples := buftype.Samples(buf)

	p := st.program.sinePhase[st.opIndex]
	const sampleRate = 44100.0
	step := float32(2 * math.Pi * float64(freq) / sampleRate)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(p)))
		p += step
		if p > 2*math.Pi {
			p -= float32(2 * math.Pi)
		}
	}
	st.program.sinePhase[st.opIndex] = p
	buftype.PutSamples(buf, samples)
	return nil
}

func runMidiMonkey(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	prob := args[1].Float
	buf := st.program.Buffer(idx)

	if err := buftype.EventSeq{}.Clear(buf); err != nil {
		return err
	}
	if rand.Float32() >= prob {
		return nil
	}
	frame := uint32(rand.Intn(int(ctx.BlockSize)))
	return buftype.WriteEvents(buf, []buftype.Event{
		{Frame: frame, Payload: []byte{0x90, 62, 100}},
	})
}

func initConnectPort(ctx *BlockContext, st *execState, args []Arg) error {
	procIdx := int(args[0].Int)
	portIdx := uint32(args[1].Int)
	bufIdx := int(args[2].Int)
	proc := st.program.spec.Processor(procIdx)
	return proc.ConnectPort(portIdx, st.program.Buffer(bufIdx))
}

func runCall(ctx *BlockContext, st *execState, args []Arg) error {
	procIdx := int(args[0].Int)
	proc := st.program.spec.Processor(procIdx)
	return proc.ProcessBlock(toProcessorContext(ctx, st))
}

func runLogRMS(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	buf := st.program.Buffer(idx)
	samples := buftype.Samples(buf)

	if st.logf != nil && len(samples) > 0 {
		st.logf("block %d rms=%.3f", idx, opgen.RMS(samples))
	}
	return nil
}

func runLogAtom(ctx *BlockContext, st *execState, args []Arg) error {
	idx := int(args[0].Int)
	buf := st.program.Buffer(idx)
	events, err := buftype.ReadEvents(buf)
	if err != nil {
		return err
	}
	if st.logf != nil {
		for _, ev := range events {
			st.logf("buffer %d event @%d len=%d", idx, ev.Frame, len(ev.Payload))
		}
	}
	return nil
}
