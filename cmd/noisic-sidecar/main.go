// Command noisic-sidecar hosts a single out-of-process processor (a native
// plugin the engine doesn't want to dlopen in-process) and speaks the
// line-framed memory-map/process-block protocol over its own stdin/stdout,
// matching the subprocess-plus-pipe shape of
// original_source/noisicore/plugin_host.{h,cpp} and the teacher's
// gamescope/main.go subprocess session pattern.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/noisicaa-go/engine/internal/processor"
	"github.com/noisicaa-go/engine/internal/rtsched"
	"github.com/noisicaa-go/engine/internal/sidecar"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	var kind string
	var libraryPath string
	var label string
	var sampleRate uint64

	fs := pflag.NewFlagSet("noisic-sidecar", pflag.ExitOnError)
	fs.StringVar(&kind, "kind", string(processor.KindLADSPA), "processor kind to host")
	fs.StringVar(&libraryPath, "library-path", "", "shared library path for the ladspa kind")
	fs.StringVar(&label, "label", "", "plugin label for the ladspa kind")
	fs.Uint64Var(&sampleRate, "sample-rate", 44100, "sample rate passed to the hosted processor")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	proc, err := buildProcessor(processor.Kind(kind), libraryPath, label, sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "noisic-sidecar: %v\n", err)
		os.Exit(1)
	}
	if err := proc.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "noisic-sidecar: setup failed: %v\n", err)
		os.Exit(1)
	}
	defer proc.Cleanup()

	host := sidecar.NewHost(proc, os.Stdin, os.Stdout)
	host.Elevate = func() error {
		_, err := rtsched.Elevate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "noisic-sidecar: warning: could not elevate to realtime scheduling: %v\n", err)
		}
		return err
	}

	if err := host.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "noisic-sidecar: %v\n", err)
		os.Exit(1)
	}
}

func buildProcessor(kind processor.Kind, libraryPath, label string, sampleRate uint64) (processor.Processor, error) {
	switch kind {
	case processor.KindLADSPA:
		return processor.NewLADSPA(libraryPath, label, sampleRate), nil
	case processor.KindNull:
		return processor.NewNull(), nil
	default:
		return nil, fmt.Errorf("unsupported sidecar processor kind %q", kind)
	}
}
