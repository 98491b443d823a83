// Package sampleplayer implements the sample_player processor variant: a
// one-shot sample playback voice built on top of internal/script's
// additive-synthesis engine, but with a fixed score baked in at
// construction time instead of accepting live MIDI through an events port.
// Grounded on original_source/noisicore/processor_sample_script.{h,cpp},
// which plays a single canned sample/score through the same
// ProcessorCSoundBase machinery the live script variant uses.
package sampleplayer

import (
	"fmt"

	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
	"github.com/noisicaa-go/engine/internal/script"
)

// Note describes one fixed score event: instrument, start time, duration,
// pitch and velocity, in the same units script's "i" score lines use.
type Note struct {
	Instrument int
	Start      float64
	Duration   float64
	Pitch      int
	Velocity   int
}

// Processor plays a fixed score once Setup runs, through an embedded
// script.Processor. Its ports must not declare a PortEvents input: the
// score is baked in, not driven from the audio thread.
type Processor struct {
	inner *script.Processor
	score []Note
}

// New builds a sample_player processor for the given ports, sample rate
// and ksmps chunk size, with the fixed score that plays back on Setup.
func New(sampleRate, ksmps uint32, ports []processor.Port, score []Note) *Processor {
	return &Processor{
		inner: script.New(sampleRate, ksmps, ports),
		score: score,
	}
}

func (p *Processor) ID() uint64              { return p.inner.ID() }
func (p *Processor) Ports() []processor.Port { return p.inner.Ports() }
func (p *Processor) State() processor.State  { return p.inner.State() }

// Setup brings up the inner script processor and loads the fixed score.
func (p *Processor) Setup() error {
	for _, port := range p.inner.Ports() {
		if port.Type == processor.PortEvents {
			return engineerr.InvalidOperation(
				"sample_player ports must not declare an events input; score is fixed at construction")
		}
	}
	if err := p.inner.Setup(); err != nil {
		return err
	}
	return p.inner.SetCode("", scoreText(p.score))
}

func (p *Processor) Cleanup() {
	p.inner.Cleanup()
}

func (p *Processor) ConnectPort(portIdx uint32, buf []byte) error {
	return p.inner.ConnectPort(portIdx, buf)
}

func (p *Processor) ProcessBlock(ctx processor.Context) error {
	return p.inner.ProcessBlock(ctx)
}

func (p *Processor) GetParameter(name string) (processor.Parameter, bool) {
	return p.inner.GetParameter(name)
}

func (p *Processor) SetParameter(name string, value processor.Parameter) error {
	return p.inner.SetParameter(name, value)
}

// DrainOld forwards to the inner processor's off-thread cleanup hook, for
// callers that drain retired script instances on a control-thread tick.
func (p *Processor) DrainOld() {
	p.inner.DrainOld()
}

// scoreText renders notes into script's "i <instr> <start> <dur> <note>
// <vel>" score format.
func scoreText(notes []Note) string {
	var s string
	for _, n := range notes {
		s += fmt.Sprintf("i %d %g %g %d %d\n", n.Instrument, n.Start, n.Duration, n.Pitch, n.Velocity)
	}
	return s
}
