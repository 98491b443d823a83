package backend

import (
	"github.com/gordonklaus/portaudio"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/vm"
)

const localSampleRate = 44100

// Local opens the default stereo output device and writes one block per
// EndBlock call. Grounded on PortAudioBackend: begin_block zeros both
// channel buffers, output() copies into the named channel's buffer,
// end_block blocking-writes the pair and demotes an underflow to a warning.
//
// gordonklaus/portaudio's OpenDefaultStream accepts a pointer to the
// buffer(s) it should bind for blocking (non-callback) I/O when no callback
// function is passed — used here instead of the callback form so EndBlock
// can drive the write synchronously from the VM's own block loop, matching
// the original's pull-model Pa_WriteStream.
type Local struct {
	initialized bool
	stream      *portaudio.Stream
	blockSize   uint32
	samples     [2][]float32

	// LogFunc receives non-fatal diagnostics (e.g. buffer underruns),
	// matching the original's log(LogLevel::WARNING, ...) calls.
	LogFunc func(format string, args ...any)
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Setup(blockSize uint32) error {
	if err := portaudio.Initialize(); err != nil {
		return engineerr.OS(err, "failed to initialize portaudio")
	}
	l.initialized = true

	l.blockSize = blockSize
	l.samples[0] = make([]float32, blockSize)
	l.samples[1] = make([]float32, blockSize)

	stream, err := portaudio.OpenDefaultStream(
		0, 2, float64(localSampleRate), int(blockSize), l.samples[:])
	if err != nil {
		portaudio.Terminate()
		l.initialized = false
		return engineerr.OS(err, "failed to open portaudio stream")
	}
	l.stream = stream

	if err := l.stream.Start(); err != nil {
		return engineerr.OS(err, "failed to start portaudio stream")
	}
	return nil
}

func (l *Local) Cleanup() {
	if l.stream != nil {
		l.stream.Stop()
		l.stream.Close()
		l.stream = nil
	}
	if l.initialized {
		portaudio.Terminate()
		l.initialized = false
	}
}

func (l *Local) BeginBlock(ctx *vm.BlockContext) error {
	for c := range l.samples {
		for i := range l.samples[c] {
			l.samples[c][i] = 0
		}
	}
	return nil
}

func (l *Local) EndBlock(ctx *vm.BlockContext) error {
	if err := l.stream.Write(); err != nil {
		if err == portaudio.OutputUnderflowed {
			if l.LogFunc != nil {
				l.LogFunc("buffer underrun")
			}
			return nil
		}
		return engineerr.OS(err, "failed to write to portaudio stream")
	}
	return nil
}

func (l *Local) Output(ctx *vm.BlockContext, channel string, data []byte) error {
	var slot int
	switch channel {
	case "left":
		slot = 0
	case "right":
		slot = 1
	default:
		return unknownChannel(channel)
	}
	samples := buftype.Samples(data)
	n := copy(l.samples[slot], samples)
	for i := n; i < len(l.samples[slot]); i++ {
		l.samples[slot][i] = 0
	}
	return nil
}
