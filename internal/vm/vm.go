package vm

import (
	"sync/atomic"
	"time"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
)

// idleSleep is how long process_block sleeps when there's no program or
// no backend yet, matching the original's usleep(10000).
const idleSleep = 10 * time.Millisecond

// VM hosts one hot-swappable Program and drives it block by block,
// grounded on original_source/noisicore/vm.{h,cpp}. Program activation is
// lock-free: set_spec publishes to `next`; process_block promotes
// next->current->old at most once per call, maintaining the invariant
// that `old` is empty whenever a new `next` is published.
type VM struct {
	host      buftype.HostState
	registry  *processor.Registry
	blockSize atomic.Uint32

	next    atomic.Pointer[Program]
	current atomic.Pointer[Program]
	old     atomic.Pointer[Program]

	// stale holds a Program whose processors still need releasing when the
	// old-slot invariant below was violated. ProcessBlock only ever stores
	// into it, never calls Cleanup itself, keeping teardown off the audio
	// thread; ReapStale (called from the control thread) does the actual
	// release.
	stale atomic.Pointer[Program]

	backend Backend

	nextVersion atomic.Uint32

	LogFunc func(format string, args ...any)
}

// New builds a VM with the given processor registry (shared with whatever
// constructs processors for Specs handed to SetSpec) and an initial block
// size.
func New(registry *processor.Registry, blockSize uint32) *VM {
	v := &VM{registry: registry}
	v.blockSize.Store(blockSize)
	return v
}

// SetBlockSize changes the block size future process_block calls use;
// takes effect on the next call, triggering a reallocate+reinit pass.
func (v *VM) SetBlockSize(blockSize uint32) {
	v.blockSize.Store(blockSize)
}

// SetBackend installs the output backend. Matches VM::set_backend, minus
// the TODO about giving backends the same lock-free lifecycle as specs —
// a single engine-controlled swap point is sufficient here since backend
// changes aren't hot-swapped mid-stream in this design.
func (v *VM) SetBackend(b Backend) error {
	if err := b.Setup(v.blockSize.Load()); err != nil {
		return err
	}
	if v.backend != nil {
		v.backend.Cleanup()
	}
	v.backend = b
	return nil
}

// SetSpec compiles spec into a fresh Program and publishes it to `next`,
// acquiring a registry reference for every processor it names and
// releasing the references held by whatever program it displaces from
// `next`/`old`. Grounded on VM::set_spec's exchange-and-refcount sequence.
func (v *VM) SetSpec(spec *Spec) error {
	v.ReapStale()

	version := v.nextVersion.Add(1) - 1
	program := newProgram(version, spec)
	if err := program.setup(v.host, v.blockSize.Load()); err != nil {
		return err
	}

	for i := 0; i < spec.NumProcessors(); i++ {
		if _, err := v.registry.Acquire(spec.Processor(i).ID()); err != nil {
			return err
		}
	}

	if prevNext := v.next.Swap(nil); prevNext != nil {
		v.releaseProgramProcessors(prevNext)
	}
	if prevOld := v.old.Swap(nil); prevOld != nil {
		v.releaseProgramProcessors(prevOld)
	}

	prevNext := v.next.Swap(program)
	if prevNext != nil {
		// Another SetSpec raced in between our two swaps above; this
		// should never happen since SetSpec only runs from the control
		// thread, but don't leak if it does.
		v.releaseProgramProcessors(prevNext)
	}
	return nil
}

// ReapStale releases processors for any Program ProcessBlock had to set
// aside because the old slot wasn't empty when a new one was promoted
// (see the invariant note on ProcessBlock). Call this from the control
// thread, e.g. right before SetSpec, never from the audio thread. A no-op
// when nothing is stale, which is the expected case always.
func (v *VM) ReapStale() {
	if p := v.stale.Swap(nil); p != nil {
		v.releaseProgramProcessors(p)
	}
}

func (v *VM) releaseProgramProcessors(p *Program) {
	spec := p.Spec()
	for i := 0; i < spec.NumProcessors(); i++ {
		if proc, shouldCleanup := v.registry.Release(spec.Processor(i).ID()); shouldCleanup {
			proc.Cleanup()
		}
	}
}

// GetBuffer returns the named buffer from the currently active program,
// or nil if there is none or the name is unknown.
func (v *VM) GetBuffer(name string) []byte {
	program := v.current.Load()
	if program == nil {
		return nil
	}
	buf, ok := program.BufferByName(name)
	if !ok {
		return nil
	}
	return buf
}

// ProcessBlock runs exactly one block: promote next->current->old if a new
// program arrived, idle if there's nothing to do yet, reinitialize opcodes
// whose init phase hasn't run or whose block size just changed, then
// execute the opcode sequence in order. Grounded on VM::process_block.
func (v *VM) ProcessBlock(ctx *BlockContext) error {
	if pending := v.next.Swap(nil); pending != nil {
		prevCurrent := v.current.Swap(pending)
		prevOld := v.old.Swap(prevCurrent)
		if prevOld != nil {
			// SetSpec's invariant (old emptied before next is published)
			// should make this unreachable. If it's violated anyway, don't
			// tear processors down here — this runs on the audio thread.
			// Hand the program to ReapStale instead and log loudly.
			if v.LogFunc != nil {
				v.LogFunc("vm: old program slot was not empty on promotion, deferring its teardown off the audio thread")
			}
			v.stale.Store(prevOld)
		}
	}

	program := v.current.Load()
	if program == nil {
		time.Sleep(idleSleep)
		return nil
	}
	if v.backend == nil {
		time.Sleep(idleSleep)
		return nil
	}

	if err := v.backend.BeginBlock(ctx); err != nil {
		return err
	}
	endBlockDismissed := false
	defer func() {
		if !endBlockDismissed {
			if err := v.backend.EndBlock(ctx); err != nil && v.LogFunc != nil {
				v.LogFunc("ignoring error in backend EndBlock: %v", err)
			}
		}
	}()

	runInit := !program.Initialized

	newBlockSize := v.blockSize.Load()
	if newBlockSize != program.blockSize {
		if v.LogFunc != nil {
			v.LogFunc("block size changed %d -> %d", program.blockSize, newBlockSize)
		}
		if err := program.reallocate(v.host, newBlockSize); err != nil {
			return err
		}
		runInit = true
	}

	ctx.BlockSize = program.blockSize
	if ctx.BlockSize == 0 {
		return engineerr.InvalidOperation("invalid block size 0")
	}

	st := &execState{program: program, backend: v.backend, logf: v.LogFunc}
	spec := program.spec
	for st.opIndex = 0; st.opIndex < spec.NumOps() && !st.ended; st.opIndex++ {
		opcode := spec.Opcode(st.opIndex)
		oc := opspecs[opcode]
		args := spec.Opargs(st.opIndex)
		if runInit && oc.init != nil {
			if err := oc.init(ctx, st, args); err != nil {
				return err
			}
		}
		if oc.run != nil {
			if err := oc.run(ctx, st, args); err != nil {
				return err
			}
		}
	}

	if runInit {
		program.Initialized = true
	}

	endBlockDismissed = true
	return v.backend.EndBlock(ctx)
}

// Cleanup discards every slot's program, releasing whatever processor
// references they hold. Grounded on VM::cleanup.
func (v *VM) Cleanup() {
	if p := v.next.Swap(nil); p != nil {
		v.releaseProgramProcessors(p)
	}
	if p := v.current.Swap(nil); p != nil {
		v.releaseProgramProcessors(p)
	}
	if p := v.old.Swap(nil); p != nil {
		v.releaseProgramProcessors(p)
	}
	if v.backend != nil {
		v.backend.Cleanup()
		v.backend = nil
	}
}
