package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsInternallyConsistent(t *testing.T) {
	s := Default()
	require.NotZero(t, s.Arena.SizeBytes)
	require.NotZero(t, s.Audio.BlockSize)
	require.NotZero(t, s.Audio.SampleRate)
	require.NotEmpty(t, s.Backend.Name)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := Default()
	s.Audio.BlockSize = 512
	s.Backend.Name = "filesink"
	s.Backend.OutputPath = "/tmp/out.wav"

	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, Save(path, s))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBindFlagsOverridesLoadedValue(t *testing.T) {
	s := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs, &s)

	require.NoError(t, fs.Parse([]string{"--block-size=1024", "--backend=null"}))
	require.Equal(t, uint32(1024), s.Audio.BlockSize)
	require.Equal(t, "null", s.Backend.Name)
}
