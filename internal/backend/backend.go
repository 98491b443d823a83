// Package backend implements the block-rate output drivers the VM calls
// once per block: a local audio device, a line-framed IPC peer, a discard
// sink, and a file-bounce sink. Grounded on
// original_source/noisicore/backend.{h,cpp} and backend_portaudio.{h,cpp};
// the IPC variant follows spec.md's line-framed protocol directly rather
// than the original's capnp-based backend_ipc.cpp, which only contributes
// lifecycle shape (setup/begin_block/end_block/output).
package backend

import "github.com/noisicaa-go/engine/internal/vm"

// Settings mirrors BackendSettings: the handful of knobs a backend needs at
// construction time, independent of which variant is chosen.
type Settings struct {
	// IPCAddress is the base path of the named pipe pair (IPCAddress+".req"
	// and IPCAddress+".resp") the IPC backend reads/writes frames on.
	IPCAddress string
	// BlockSize is the initial block size. Setup returns only an error, so
	// a backend cannot hand a different block size back.
	BlockSize uint32
	// OutputPath is the destination file for the filesink backend.
	OutputPath string
}

// New builds the named backend variant, matching Backend::create's
// string-keyed factory.
func New(name string, settings Settings) (vm.Backend, error) {
	switch name {
	case "local":
		return NewLocal(), nil
	case "ipc":
		return NewIPC(settings.IPCAddress), nil
	case "null":
		return NewNull(), nil
	case "filesink":
		return NewFileSink(settings.OutputPath), nil
	default:
		return nil, unknownBackend(name)
	}
}
