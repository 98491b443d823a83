// Package script implements the hot-swappable script-DSP processor: a
// small additive-synthesis orchestra compiled from text, run ksmps frames
// at a time, with live recompilation published to the audio thread through
// a three-slot next/current/old handoff. Grounded on
// original_source/noisicore/processor_csound.{h,cpp}'s ProcessorCSoundBase,
// adapted from an embedded Csound engine to a Go-native voice synth.
package script

import (
	"sync/atomic"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
)

// Processor is the script-DSP processor variant. One Processor hosts one
// live Instance at a time, hot-swapped by SetCode without interrupting the
// audio thread's block processing.
type Processor struct {
	processor.BaseParameters
	id    uint64
	state processor.State

	sampleRate uint32
	ksmps      uint32
	ports      []processor.Port
	buffers    [][]byte

	next    atomic.Pointer[Instance]
	current atomic.Pointer[Instance]
	old     atomic.Pointer[Instance]
}

// New constructs a script processor for the given ports. ksmps is the
// chunk size the orchestra advances by; the block size passed to
// ProcessBlock must be an exact multiple of it.
func New(sampleRate, ksmps uint32, ports []processor.Port) *Processor {
	return &Processor{
		id:         processor.NewID(),
		sampleRate: sampleRate,
		ksmps:      ksmps,
		ports:      ports,
		buffers:    make([][]byte, len(ports)),
	}
}

func (p *Processor) ID() uint64              { return p.id }
func (p *Processor) Ports() []processor.Port { return p.ports }
func (p *Processor) State() processor.State  { return p.state }

func (p *Processor) Setup() error {
	if p.ksmps == 0 {
		return engineerr.InvalidOperation("script processor ksmps must be > 0")
	}
	p.state = processor.StateSetUp
	return nil
}

func (p *Processor) Cleanup() {
	p.next.Store(nil)
	p.current.Store(nil)
	p.old.Store(nil)
	p.state = processor.StateTornDown
}

func (p *Processor) ConnectPort(portIdx uint32, buf []byte) error {
	if int(portIdx) >= len(p.buffers) {
		return processor.ErrPortNotConnected(portIdx)
	}
	p.buffers[portIdx] = buf
	return nil
}

// SetCode compiles orchestra/score text into a fresh Instance and publishes
// it to next, discarding whatever the audio thread hadn't picked up yet and
// whatever it has already retired. Mirrors set_code's exchange ordering:
// old must be empty before a new next is published.
func (p *Processor) SetCode(orchestra, score string) error {
	if prev := p.next.Swap(nil); prev != nil {
		prev.close()
	}
	if prevOld := p.old.Swap(nil); prevOld != nil {
		prevOld.close()
	}

	inst, err := compile(orchestra, score, p.sampleRate, p.ports)
	if err != nil {
		return err
	}

	prevNext := p.next.Swap(inst)
	if prevNext != nil {
		// Another SetCode raced us; this should never happen since
		// SetCode only runs from the control thread, but guard anyway.
		prevNext.close()
	}
	return nil
}

// ProcessBlock runs one audio-thread block: swap in any pending instance,
// retire the old one to `old` for off-thread disposal, and advance the
// current instance ksmps frames at a time across the full block.
func (p *Processor) ProcessBlock(ctx processor.Context) error {
	if ctx.BlockSize%p.ksmps != 0 {
		return engineerr.InvalidOperation(
			"block size %d is not a multiple of ksmps %d", ctx.BlockSize, p.ksmps)
	}

	if pending := p.next.Swap(nil); pending != nil {
		prevCurrent := p.current.Swap(pending)
		prevOld := p.old.Swap(prevCurrent)
		if prevOld != nil {
			// Invariant violated: old wasn't drained before the swap.
			// To avoid blocking the audio thread, the previous old is
			// overwritten without close() and nothing is reported.
			_ = prevOld
		}
	}

	inst := p.current.Load()
	if inst == nil {
		return p.clearOutputs(ctx.BlockSize)
	}

	for portIdx, buf := range p.buffers {
		if buf == nil && p.ports[portIdx].Type != processor.PortEvents {
			return processor.ErrPortNotConnected(uint32(portIdx))
		}
	}

	for _, portIdx := range inst.eventInputPorts {
		events, err := buftype.ReadEvents(p.buffers[portIdx])
		if err != nil {
			return err
		}
		inst.queueMIDI(events)
	}

	var pos uint32
	for pos < ctx.BlockSize {
		inst.step(p.ports, p.buffers, pos, p.ksmps)
		pos += p.ksmps
	}
	return nil
}

func (p *Processor) clearOutputs(blockSize uint32) error {
	for i, port := range p.ports {
		if port.Direction != processor.DirectionOut {
			continue
		}
		buf := p.buffers[i]
		if buf == nil {
			continue
		}
		switch port.Type {
		case processor.PortAudio, processor.PortARateControl:
			buftype.PutSamples(buf, make([]float32, blockSize))
		case processor.PortKRateControl:
			buftype.SetScalar(buf, 0, buftype.ScalarGeneration(buf)+1)
		}
	}
	return nil
}

// DrainOld returns and clears the retired instance, if any, so the caller
// (off the audio thread) can release whatever resources it holds. Mirrors
// the original's "old instance ... eventually destroyed in the main
// thread" comment.
func (p *Processor) DrainOld() {
	if old := p.old.Swap(nil); old != nil {
		old.close()
	}
}
