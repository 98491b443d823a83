package backend

import (
	"io"
	"log"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/vm"
)

const fileSinkSampleRate = 44100

// FileSink renders the block stream to a media file for offline bounce, an
// additional variant beyond spec.md's local/IPC/null set. Grounded on
// audio/ffmpegbase.go's pattern of piping raw PCM into an ffmpeg-go process
// via io.Pipe, reused here in the opposite direction (engine writes, ffmpeg
// reads and muxes to outputPath).
type FileSink struct {
	outputPath string

	cmd        *exec.Cmd
	pipeWriter io.WriteCloser

	blockSize uint32
	left      []float32
	right     []float32
}

func NewFileSink(outputPath string) *FileSink {
	return &FileSink{outputPath: outputPath}
}

func (f *FileSink) Setup(blockSize uint32) error {
	f.blockSize = blockSize
	f.left = make([]float32, blockSize)
	f.right = make([]float32, blockSize)

	pipeReader, pipeWriter := io.Pipe()
	f.pipeWriter = pipeWriter

	inputArgs := ffmpeg.KwArgs{
		"f":   "f32le",
		"ar":  fileSinkSampleRate,
		"ac":  "2",
	}
	outputArgs := ffmpeg.KwArgs{}

	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(f.outputPath, outputArgs).
		WithInput(pipeReader).ErrorToStdOut()

	f.cmd = ffmpegCmd.Compile()
	if err := f.cmd.Start(); err != nil {
		return engineerr.OS(err, "failed to start ffmpeg file sink")
	}

	go func() {
		if err := f.cmd.Wait(); err != nil && !strings.Contains(err.Error(), "signal: killed") {
			log.Printf("ffmpeg file sink exited with error: %v", err)
		}
	}()

	return nil
}

func (f *FileSink) Cleanup() {
	if f.pipeWriter != nil {
		f.pipeWriter.Close()
		f.pipeWriter = nil
	}
}

func (f *FileSink) BeginBlock(ctx *vm.BlockContext) error {
	for i := range f.left {
		f.left[i] = 0
		f.right[i] = 0
	}
	return nil
}

func (f *FileSink) EndBlock(ctx *vm.BlockContext) error {
	interleaved := make([]byte, len(f.left)*2*4)
	for i := range f.left {
		putFloat32(interleaved[i*8:], f.left[i])
		putFloat32(interleaved[i*8+4:], f.right[i])
	}
	if _, err := f.pipeWriter.Write(interleaved); err != nil {
		return engineerr.OS(err, "failed to write samples to ffmpeg file sink")
	}
	return nil
}

func (f *FileSink) Output(ctx *vm.BlockContext, channel string, data []byte) error {
	samples := buftype.Samples(data)
	switch channel {
	case "left":
		copy(f.left, samples)
	case "right":
		copy(f.right, samples)
	default:
		return unknownChannel(channel)
	}
	return nil
}

func putFloat32(dst []byte, v float32) {
	buftype.PutSamples(dst, []float32{v})
}
