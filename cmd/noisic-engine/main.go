// Command noisic-engine is the standalone audio engine process: it loads a
// configuration, builds the arena/registry/VM/backend pipeline, and runs
// the block loop until interrupted. Grounded on the teacher's
// cmd/main.go's flag-parse-then-run shape, generalized from stdlib flag to
// a cobra root command with subcommands per SPEC_FULL.md's CLI surface.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/noisicaa-go/engine/internal/arena"
	"github.com/noisicaa-go/engine/internal/backend"
	"github.com/noisicaa-go/engine/internal/config"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/logpump"
	"github.com/noisicaa-go/engine/internal/processor"
	"github.com/noisicaa-go/engine/internal/rtsched"
	"github.com/noisicaa-go/engine/internal/sidecar"
	"github.com/noisicaa-go/engine/internal/vm"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	var configPath string
	settings := config.Default()

	root := &cobra.Command{
		Use:   "noisic-engine",
		Short: "Real-time audio processing engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML settings file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine's block loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadSettings(configPath, &settings, cmd.Flags())
			if err != nil {
				return err
			}
			return runEngine(loaded)
		},
	}
	config.BindFlags(runCmd.Flags(), &settings)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and print the resolved configuration without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadSettings(configPath, &settings, cmd.Flags())
			if err != nil {
				return err
			}
			fmt.Printf("%+v\n", loaded)
			return nil
		},
	}
	config.BindFlags(validateCmd.Flags(), &settings)

	root.AddCommand(runCmd, validateCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings returns fallback when no config file is given; otherwise it
// loads the file and re-applies every flag set on the command line on top.
func loadSettings(path string, fallback *config.Settings, flags *pflag.FlagSet) (config.Settings, error) {
	if path == "" {
		return *fallback, nil
	}
	loaded, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	config.BindFlags(overrides, &loaded)
	var setErr error
	flags.Visit(func(f *pflag.Flag) {
		if setErr == nil && overrides.Lookup(f.Name) != nil {
			setErr = overrides.Set(f.Name, f.Value.String())
		}
	})
	return loaded, setErr
}

func runEngine(settings config.Settings) error {
	sink := log.New(os.Stderr)
	sink.SetLevel(parseLevel(settings.Logging.Level))

	pump := logpump.New(sink)
	if err := pump.Setup(); err != nil {
		return err
	}
	defer pump.Cleanup()

	if _, err := rtsched.Elevate(); err != nil {
		sink.Warn("could not elevate to realtime scheduling, continuing at normal priority", "err", err)
	}

	a, err := arena.Create("noisic-engine", int(settings.Arena.SizeBytes))
	if err != nil {
		return err
	}
	defer func() {
		a.Destroy()
		if err := a.Unlink(); err != nil {
			sink.Warn("could not unlink arena", "err", err)
		}
	}()

	registry := processor.NewRegistry()
	registry.Register(processor.KindLADSPA, func(params map[string]string) (processor.Processor, error) {
		return processor.NewLADSPA(params["library_path"], params["label"], uint64(settings.Audio.SampleRate)), nil
	})
	// KindPlugin spawns an out-of-process sidecar and maps it onto the
	// arena created above, so a Spec referencing a plugin node actually
	// exercises the shared-memory region instead of leaving it idle.
	registry.Register(processor.KindPlugin, func(params map[string]string) (processor.Processor, error) {
		return newPluginProcessor(a, settings, params)
	})

	v := vm.New(registry, settings.Audio.BlockSize)
	v.LogFunc = func(format string, args ...any) {
		pump.Emit("engine.vm", logpump.LevelInfo, fmt.Sprintf(format, args...))
	}

	be, err := backend.New(settings.Backend.Name, backend.Settings{
		IPCAddress: settings.Backend.IPCAddress,
		BlockSize:  settings.Audio.BlockSize,
		OutputPath: settings.Backend.OutputPath,
	})
	if err != nil {
		return err
	}
	if err := v.SetBackend(be); err != nil {
		return err
	}
	defer v.Cleanup()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	sink.Info("engine running", "block_size", settings.Audio.BlockSize, "backend", settings.Backend.Name)

	var samplePos int64
	for {
		select {
		case <-sigCh:
			sink.Info("shutting down")
			return nil
		default:
		}

		ctx := &vm.BlockContext{SamplePos: samplePos}
		if err := v.ProcessBlock(ctx); err != nil {
			sink.Error("block processing failed", "err", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		samplePos += int64(ctx.BlockSize)
	}
}

// newPluginProcessor builds a sidecar-backed Plugin processor from a
// KindPlugin node's flat string params. Since registry.Factory only carries
// map[string]string, the port layout rides along as a compact
// "idx:dir:type:offset" record list rather than a richer type:
//
//	sidecar_path:  executable to spawn
//	sidecar_args:  space-separated argv, optional
//	cond_offset:   decimal byte offset of the completion condition in arena
//	ports:         comma-separated "idx:dir:type:offset" records
func newPluginProcessor(a *arena.Arena, settings config.Settings, params map[string]string) (processor.Processor, error) {
	ports, offsets, err := parsePluginPorts(params["ports"])
	if err != nil {
		return nil, err
	}

	condOffset, err := strconv.ParseUint(params["cond_offset"], 10, 64)
	if err != nil {
		return nil, engineerr.InvalidOperation("bad cond_offset %q: %v", params["cond_offset"], err)
	}

	var args []string
	if raw := params["sidecar_args"]; raw != "" {
		args = strings.Fields(raw)
	}

	client, err := sidecar.NewClient(params["sidecar_path"], args, a.Address())
	if err != nil {
		return nil, err
	}
	client.SetDeadline(time.Duration(settings.Sidecar.ProcessDeadlineMillis) * time.Millisecond)

	return processor.NewPlugin(ports, a.Name(), condOffset, offsets, sidecar.ClientAdapter{Client: client}), nil
}

// parsePluginPorts decodes the "ports" param into a Port list plus the
// port-index -> arena-offset map NewPlugin needs. An empty spec is valid
// (a plugin with no mapped ports yet).
func parsePluginPorts(spec string) ([]processor.Port, map[uint32]uint64, error) {
	ports := []processor.Port{}
	offsets := map[uint32]uint64{}
	if spec == "" {
		return ports, offsets, nil
	}

	for _, rec := range strings.Split(spec, ",") {
		fields := strings.Split(rec, ":")
		if len(fields) != 4 {
			return nil, nil, engineerr.InvalidOperation("malformed plugin port record %q", rec)
		}

		idx, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, nil, engineerr.InvalidOperation("bad port index %q: %v", fields[0], err)
		}

		var dir processor.Direction
		switch fields[1] {
		case "in":
			dir = processor.DirectionIn
		case "out":
			dir = processor.DirectionOut
		default:
			return nil, nil, engineerr.InvalidOperation("bad port direction %q", fields[1])
		}

		var typ processor.PortType
		switch fields[2] {
		case "audio":
			typ = processor.PortAudio
		case "a_rate":
			typ = processor.PortARateControl
		case "k_rate":
			typ = processor.PortKRateControl
		case "events":
			typ = processor.PortEvents
		default:
			return nil, nil, engineerr.InvalidOperation("bad port type %q", fields[2])
		}

		offset, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return nil, nil, engineerr.InvalidOperation("bad port offset %q: %v", fields[3], err)
		}

		portIdx := uint32(idx)
		ports = append(ports, processor.Port{Index: portIdx, Name: fmt.Sprintf("port%d", portIdx), Direction: dir, Type: typ})
		offsets[portIdx] = offset
	}
	return ports, offsets, nil
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
