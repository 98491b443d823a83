package config

import "github.com/spf13/pflag"

// BindFlags registers one flag per Settings field onto fs, letting a cobra
// command override file-loaded settings from the command line. Call after
// Load so flag defaults reflect the loaded file rather than Default().
func BindFlags(fs *pflag.FlagSet, s *Settings) {
	fs.Uint64Var(&s.Arena.SizeBytes, "arena-size", s.Arena.SizeBytes, "buffer arena size in bytes")
	fs.Uint32Var(&s.Audio.BlockSize, "block-size", s.Audio.BlockSize, "audio block size in samples")
	fs.Uint32Var(&s.Audio.SampleRate, "sample-rate", s.Audio.SampleRate, "audio sample rate in Hz")
	fs.StringVar(&s.Backend.Name, "backend", s.Backend.Name, "output backend: local, ipc, null, filesink")
	fs.StringVar(&s.Backend.IPCAddress, "ipc-address", s.Backend.IPCAddress, "named pipe pair prefix for the ipc backend")
	fs.StringVar(&s.Backend.OutputPath, "output-path", s.Backend.OutputPath, "output file path for the filesink backend")
	fs.IntVar(&s.Sidecar.ProcessDeadlineMillis, "sidecar-deadline-ms", s.Sidecar.ProcessDeadlineMillis, "sidecar process_block wait deadline in milliseconds")
	fs.StringVar(&s.Logging.Level, "log-level", s.Logging.Level, "logging verbosity: debug, info, warning, error")
}
