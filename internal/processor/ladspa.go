package processor

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef struct {
	int dummy;
} LADSPA_Handle_holder;

// LADSPA's actual ABI (ladspa.h) declares:
//
//   typedef struct _LADSPA_Descriptor {
//     unsigned long UniqueID;
//     const char *Label;
//     ...
//     const char *Name;
//     ...
//     LADSPA_Handle (*instantiate)(const struct _LADSPA_Descriptor *, unsigned long SampleRate);
//     void (*connect_port)(LADSPA_Handle, unsigned long Port, float *DataLocation);
//     void (*activate)(LADSPA_Handle);
//     void (*run)(LADSPA_Handle, unsigned long SampleCount);
//     void (*deactivate)(LADSPA_Handle);
//     void (*cleanup)(LADSPA_Handle);
//   } LADSPA_Descriptor;
//
// We mirror only the fields we call through, in declaration order up to
// each one, so the offsets line up with a real ladspa.h without vendoring
// the whole header.
typedef void *LADSPA_Handle;

typedef struct _LADSPA_PortRangeHint {
	int HintDescriptor;
	float LowerBound;
	float UpperBound;
} LADSPA_PortRangeHint;

typedef struct _LADSPA_Descriptor {
	unsigned long UniqueID;
	const char *Label;
	int Properties;
	const char *Name;
	const char *Maker;
	const char *Copyright;
	unsigned long PortCount;
	const int *PortDescriptors;
	const char * const *PortNames;
	const LADSPA_PortRangeHint *PortRangeHints;
	void *ImplementationData;
	LADSPA_Handle (*instantiate)(const struct _LADSPA_Descriptor *Descriptor, unsigned long SampleRate);
	void (*connect_port)(LADSPA_Handle Instance, unsigned long Port, float *DataLocation);
	void (*activate)(LADSPA_Handle Instance);
	void (*run)(LADSPA_Handle Instance, unsigned long SampleCount);
	void (*run_adding)(LADSPA_Handle Instance, unsigned long SampleCount);
	void (*set_run_adding_gain)(LADSPA_Handle Instance, float Gain);
	void (*deactivate)(LADSPA_Handle Instance);
	void (*cleanup)(LADSPA_Handle Instance);
} LADSPA_Descriptor;

typedef const LADSPA_Descriptor *(*LADSPA_Descriptor_Function)(unsigned long Index);

static void *noisic_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW);
}

static void *noisic_dlsym_descriptor_fn(void *handle) {
	return dlsym(handle, "ladspa_descriptor");
}

static const LADSPA_Descriptor *noisic_find_descriptor(void *fn, const char *label) {
	LADSPA_Descriptor_Function descfn = (LADSPA_Descriptor_Function)fn;
	unsigned long idx = 0;
	for (;;) {
		const LADSPA_Descriptor *d = descfn(idx);
		if (d == 0) {
			return 0;
		}
		if (d->Label != 0 && label != 0 && __builtin_strcmp(d->Label, label) == 0) {
			return d;
		}
		idx++;
	}
}

static LADSPA_Handle noisic_instantiate(const LADSPA_Descriptor *d, unsigned long sampleRate) {
	return d->instantiate(d, sampleRate);
}

static void noisic_activate(const LADSPA_Descriptor *d, LADSPA_Handle h) {
	if (d->activate != 0) {
		d->activate(h);
	}
}

static void noisic_connect_port(const LADSPA_Descriptor *d, LADSPA_Handle h, unsigned long port, float *buf) {
	d->connect_port(h, port, buf);
}

static void noisic_run(const LADSPA_Descriptor *d, LADSPA_Handle h, unsigned long n) {
	d->run(h, n);
}

static void noisic_deactivate(const LADSPA_Descriptor *d, LADSPA_Handle h) {
	if (d->deactivate != 0) {
		d->deactivate(h);
	}
}

static void noisic_cleanup(const LADSPA_Descriptor *d, LADSPA_Handle h) {
	d->cleanup(h);
}

static unsigned long noisic_port_count(const LADSPA_Descriptor *d) {
	return d->PortCount;
}

static const char *noisic_port_name(const LADSPA_Descriptor *d, unsigned long i) {
	return d->PortNames[i];
}

static int noisic_port_descriptor(const LADSPA_Descriptor *d, unsigned long i) {
	return d->PortDescriptors[i];
}
*/
import "C"

import (
	"unsafe"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// LADSPA ports: input/output bitmask bit, audio/control bitmask bit, as
// defined by ladspa.h (LADSPA_PORT_INPUT=1, LADSPA_PORT_OUTPUT=2,
// LADSPA_PORT_CONTROL=4, LADSPA_PORT_AUDIO=8).
const (
	ladspaPortInput   = 1
	ladspaPortOutput  = 2
	ladspaPortControl = 4
	ladspaPortAudio   = 8
)

// LADSPA hosts a single native LADSPA plugin instance loaded from a shared
// library by Label, grounded on
// original_source/noisicore/processor_ladspa.{h,cpp}'s dlopen/dlsym/
// instantiate/connect_port/run/deactivate/cleanup lifecycle.
type LADSPA struct {
	BaseParameters
	id    uint64
	state State

	libraryPath string
	label       string
	sampleRate  uint64

	handle     unsafe.Pointer
	descriptor *C.LADSPA_Descriptor
	instance   C.LADSPA_Handle
	ports      []Port

	// connected holds the Go-side float32 slices backing each port, kept
	// alive so the C side's raw pointer into them stays valid for the
	// lifetime of the connection.
	connected map[uint32][]float32
}

// NewLADSPA constructs an unloaded LADSPA processor bound to a library
// path and plugin Label. Setup performs the actual dlopen/instantiate.
func NewLADSPA(libraryPath, label string, sampleRate uint64) *LADSPA {
	return &LADSPA{
		id:          NewID(),
		libraryPath: libraryPath,
		label:       label,
		sampleRate:  sampleRate,
		connected:   make(map[uint32][]float32),
	}
}

func (l *LADSPA) ID() uint64    { return l.id }
func (l *LADSPA) Ports() []Port { return l.ports }
func (l *LADSPA) State() State  { return l.state }

func (l *LADSPA) Setup() error {
	cpath := C.CString(l.libraryPath)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.noisic_dlopen(cpath)
	if handle == nil {
		return engineerr.OS(nil, "dlopen %s failed", l.libraryPath)
	}

	fn := C.noisic_dlsym_descriptor_fn(handle)
	if fn == nil {
		return engineerr.OS(nil, "%s does not export ladspa_descriptor", l.libraryPath)
	}

	clabel := C.CString(l.label)
	defer C.free(unsafe.Pointer(clabel))
	desc := C.noisic_find_descriptor(fn, clabel)
	if desc == nil {
		return engineerr.InvalidOperation("no LADSPA plugin labeled %q in %s", l.label, l.libraryPath)
	}

	instance := C.noisic_instantiate(desc, C.ulong(l.sampleRate))
	if instance == nil {
		return engineerr.New("LADSPA instantiate failed for %q", l.label)
	}

	l.handle = handle
	l.descriptor = desc
	l.instance = instance

	count := int(C.noisic_port_count(desc))
	l.ports = make([]Port, count)
	for i := 0; i < count; i++ {
		flags := int(C.noisic_port_descriptor(desc, C.ulong(i)))
		dir := DirectionIn
		if flags&ladspaPortOutput != 0 {
			dir = DirectionOut
		}
		typ := PortKRateControl
		if flags&ladspaPortAudio != 0 {
			typ = PortAudio
		} else if flags&ladspaPortControl != 0 {
			typ = PortKRateControl
		}
		name := C.GoString(C.noisic_port_name(desc, C.ulong(i)))
		l.ports[i] = Port{Index: uint32(i), Name: name, Direction: dir, Type: typ}
	}

	C.noisic_activate(l.descriptor, l.instance)
	l.state = StateSetUp
	return nil
}

func (l *LADSPA) Cleanup() {
	if l.instance != nil {
		C.noisic_deactivate(l.descriptor, l.instance)
		C.noisic_cleanup(l.descriptor, l.instance)
		l.instance = nil
	}
	if l.handle != nil {
		C.dlclose(l.handle)
		l.handle = nil
	}
	l.state = StateTornDown
}

// ConnectPort binds a port to buf, which the caller must keep alive and
// sized to hold float32 samples for audio ports or a single float32 for
// control ports, for as long as the connection lasts.
func (l *LADSPA) ConnectPort(portIdx uint32, buf []byte) error {
	if int(portIdx) >= len(l.ports) {
		return ErrPortNotConnected(portIdx)
	}
	samples := bytesToFloat32(buf)
	l.connected[portIdx] = samples
	C.noisic_connect_port(l.descriptor, l.instance, C.ulong(portIdx), (*C.float)(unsafe.Pointer(&samples[0])))
	return nil
}

func (l *LADSPA) ProcessBlock(ctx Context) error {
	C.noisic_run(l.descriptor, l.instance, C.ulong(ctx.BlockSize))
	return nil
}

// bytesToFloat32 reinterprets a little-endian byte buffer as a float32
// slice without copying, matching the buffer arena's in-place layout.
func bytesToFloat32(buf []byte) []float32 {
	if len(buf) < 4 {
		buf = make([]byte, 4)
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&buf[0])), len(buf)/4)
}
