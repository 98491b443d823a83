package vm

import (
	"github.com/noisicaa-go/engine/internal/buftype"
)

// Program is one immutable compiled snapshot: a Spec plus the buffers
// allocated for a specific block size. Grounded on
// original_source/noisicore/vm.h's Program/Program::setup.
type Program struct {
	Version     uint32
	Initialized bool

	spec      *Spec
	blockSize uint32
	buffers   [][]byte

	// sinePhase carries each SINE opcode's oscillator phase across
	// blocks, keyed by instruction index, since a Program (unlike a
	// single opcode call) lives for many blocks between recompiles.
	sinePhase map[int]float32

	// parameters backs FETCH_PARAMETER; set via SetParameter before the
	// program is activated, or at any time between blocks.
	parameters map[string]float32
}

// SetParameter assigns a named program-level parameter value, readable by
// the FETCH_PARAMETER opcode.
func (p *Program) SetParameter(name string, value float32) {
	p.parameters[name] = value
}

func newProgram(version uint32, spec *Spec) *Program {
	return &Program{
		Version:    version,
		spec:       spec,
		sinePhase:  make(map[int]float32),
		parameters: make(map[string]float32),
	}
}

// setup allocates every declared buffer at blockSize, matching
// Program::setup's per-buffer allocate() loop.
func (p *Program) setup(host buftype.HostState, blockSize uint32) error {
	host.BlockSize = blockSize
	p.blockSize = blockSize
	p.buffers = make([][]byte, p.spec.NumBuffers())
	for i := 0; i < p.spec.NumBuffers(); i++ {
		kind := p.spec.bufferKind(i)
		t := buftype.ByKind(kind)
		buf := make([]byte, t.Size(host))
		if err := t.Setup(host, buf); err != nil {
			return err
		}
		p.buffers[i] = buf
	}
	return nil
}

// reallocate rebuilds every buffer at a new block size, matching
// process_block's "Block size changed" branch.
func (p *Program) reallocate(host buftype.HostState, blockSize uint32) error {
	return p.setup(host, blockSize)
}

func (p *Program) BlockSize() uint32 { return p.blockSize }
func (p *Program) Spec() *Spec       { return p.spec }

// Buffer returns the raw bytes backing buffer idx.
func (p *Program) Buffer(idx int) []byte { return p.buffers[idx] }

// BufferByName resolves a declared buffer's current contents by name, for
// callers (tests, diagnostics) that don't have the numeric index.
func (p *Program) BufferByName(name string) ([]byte, bool) {
	idx, err := p.spec.bufferIndex(name)
	if err != nil {
		return nil, false
	}
	return p.buffers[idx], true
}
