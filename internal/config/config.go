// Package config loads the engine's on-disk configuration and exposes the
// flag set its command-line entry points bind to. The Settings shape
// follows the teacher's options.ShaderOptions field-per-knob style
// (options/options.go), generalized from bare pointer fields to a
// yaml-tagged struct since this engine's settings live in a file, not just
// flags.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// Settings holds every knob named across SPEC_FULL.md's ambient stack:
// arena sizing, block rate, output device selection, sidecar protocol
// timing, and logging verbosity.
type Settings struct {
	Arena struct {
		SizeBytes uint64 `yaml:"size_bytes"`
	} `yaml:"arena"`

	Audio struct {
		BlockSize  uint32 `yaml:"block_size"`
		SampleRate uint32 `yaml:"sample_rate"`
	} `yaml:"audio"`

	Backend struct {
		// Name selects one of "local", "ipc", "null", "filesink".
		Name       string `yaml:"name"`
		IPCAddress string `yaml:"ipc_address"`
		OutputPath string `yaml:"output_path"`
	} `yaml:"backend"`

	Sidecar struct {
		ProcessDeadlineMillis int `yaml:"process_deadline_millis"`
	} `yaml:"sidecar"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the settings a fresh install starts from.
func Default() Settings {
	var s Settings
	s.Arena.SizeBytes = 64 << 20
	s.Audio.BlockSize = 256
	s.Audio.SampleRate = 44100
	s.Backend.Name = "local"
	s.Sidecar.ProcessDeadlineMillis = 2000
	s.Logging.Level = "info"
	return s
}

// Load reads and parses a YAML settings file, falling back to Default for
// any field the file doesn't set (by parsing over a copy of Default).
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, engineerr.OS(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, engineerr.InvalidOperation("failed to parse config file %s: %v", path, err)
	}
	return s, nil
}

// Save writes settings back to path as YAML, used by a future "init config"
// command path and by tests round-tripping Settings.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return engineerr.InvalidOperation("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return engineerr.OS(err, "failed to write config file %s", path)
	}
	return nil
}
