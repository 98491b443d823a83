package script

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
)

// voice is one sounding note: a single sine oscillator with a short linear
// release, identified by the csound-style "instr.note" pair so repeated
// note-on/note-off for the same pitch addresses the same voice.
type voice struct {
	instr, note int
	freq        float32
	amp         float32
	phase       float32
	releasing   bool
	env         float32
}

// Instance is one compiled, ready-to-run orchestra: the set of audio output
// ports it drives and the live voice table note-on/note-off events mutate.
// Grounded on ProcessorCSoundBase::Instance, minus the embedded Csound
// engine — the voice table here plays the role of Csound's channel state.
type Instance struct {
	mu     sync.Mutex
	voices map[int]*voice

	sampleRate   uint32
	decayPerSamp float32

	audioOutPorts   []int
	eventInputPorts []int
}

const defaultDecayPerSample = 0.0003

// compile parses an orchestra preamble (currently just an optional
// "decay=<float>" tuning line, one per orchestra) and a score ("i <instr>
// <start> <dur> <note> <vel>" lines) into a ready Instance. Port roles are
// derived from the processor's port declarations rather than re-declared
// in the orchestra text, since Go's Processor already carries that.
func compile(orchestra, score string, sampleRate uint32, ports []processor.Port) (*Instance, error) {
	inst := &Instance{
		voices:       make(map[int]*voice),
		sampleRate:   sampleRate,
		decayPerSamp: defaultDecayPerSample,
	}

	for i, p := range ports {
		switch {
		case p.Direction == processor.DirectionOut &&
			(p.Type == processor.PortAudio || p.Type == processor.PortARateControl):
			inst.audioOutPorts = append(inst.audioOutPorts, i)
		case p.Direction == processor.DirectionIn && p.Type == processor.PortEvents:
			inst.eventInputPorts = append(inst.eventInputPorts, i)
		}
	}

	for _, line := range strings.Split(orchestra, "\n") {
		line = strings.TrimSpace(line)
		if d, ok := strings.CutPrefix(line, "decay="); ok {
			v, err := strconv.ParseFloat(d, 32)
			if err != nil {
				return nil, engineerr.InvalidOperation("bad decay value %q", d)
			}
			inst.decayPerSamp = float32(v)
		}
	}

	for _, line := range strings.Split(score, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "i ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, engineerr.InvalidOperation("malformed score line %q", line)
		}
		instrNote := fields[1]
		note, vel, err := parseInstrNote(instrNote, fields[4], fields[5])
		if err != nil {
			return nil, err
		}
		instr, n, err := splitInstrNote(instrNote)
		if err != nil {
			return nil, err
		}
		inst.addVoice(instr, n, note, vel)
	}

	return inst, nil
}

func splitInstrNote(s string) (instr, note int, err error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.SplitN(s, ".", 2)
	instr, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, engineerr.InvalidOperation("bad instr id %q", s)
	}
	if len(parts) == 2 {
		note, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, engineerr.InvalidOperation("bad note id %q", s)
		}
	}
	if neg {
		instr = -instr
	}
	return instr, note, nil
}

func parseInstrNote(instrNote, noteField, velField string) (note, vel int, err error) {
	note, err = strconv.Atoi(noteField)
	if err != nil {
		return 0, 0, engineerr.InvalidOperation("bad note field %q", noteField)
	}
	vel, err = strconv.Atoi(velField)
	if err != nil {
		return 0, 0, engineerr.InvalidOperation("bad velocity field %q", velField)
	}
	return note, vel, nil
}

func noteToFreq(note int) float32 {
	return float32(440.0 * math.Pow(2, (float64(note)-69.0)/12.0))
}

// addVoice starts or restarts a voice. instr < 0 is the note-off encoding
// used by queueMIDI, matching "i -%d.%d 0 0 0" in the original.
func (i *Instance) addVoice(instr, note, midiNote, vel int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if instr < 0 {
		key := -instr*1000 + note
		if v, ok := i.voices[key]; ok {
			v.releasing = true
		}
		return
	}
	key := instr*1000 + note
	i.voices[key] = &voice{
		instr: instr,
		note:  note,
		freq:  noteToFreq(midiNote),
		amp:   float32(vel) / 127.0,
		env:   1.0,
	}
}

// queueMIDI translates raw MIDI note-on/off events into voice table
// changes, mirroring processor_csound.cpp's inline score-line synthesis
// for 0x90/0x80 status bytes on an atom event-sequence input port.
func (i *Instance) queueMIDI(events []buftype.Event) {
	const (
		statusMask  = 0xf0
		noteOn      = 0x90
		noteOff     = 0x80
		defaultInst = 1
	)
	for _, ev := range events {
		if len(ev.Payload) < 3 {
			continue
		}
		status := ev.Payload[0] & statusMask
		note := int(ev.Payload[1])
		vel := int(ev.Payload[2])
		switch status {
		case noteOn:
			if vel == 0 {
				i.addVoice(-defaultInst, note, note, 0)
			} else {
				i.addVoice(defaultInst, note, note, vel)
			}
		case noteOff:
			i.addVoice(-defaultInst, note, note, 0)
		}
	}
}

// step advances every audio output port by exactly ksmps frames starting
// at pos, summing every active voice's sine oscillator and retiring voices
// whose release envelope has reached zero.
func (i *Instance) step(ports []processor.Port, buffers [][]byte, pos, ksmps uint32) {
	i.mu.Lock()
	defer i.mu.Unlock()

	chunk := make([]float32, ksmps)
	for k := range chunk {
		var sample float32
		for key, v := range i.voices {
			sample += v.amp * v.env * sinApprox(v.phase)
			step := 2 * math.Pi * float64(v.freq) / float64(i.sampleRate)
			v.phase += float32(step)
			if v.phase > 2*math.Pi {
				v.phase -= float32(2 * math.Pi)
			}
			if v.releasing {
				v.env -= i.decayPerSamp
				if v.env <= 0 {
					delete(i.voices, key)
				}
			}
		}
		chunk[k] = sample
	}

	for _, portIdx := range i.audioOutPorts {
		if ports[portIdx].Direction != processor.DirectionOut {
			continue
		}
		buf := buffers[portIdx]
		if buf == nil {
			continue
		}
		samples := buftype.Samples(buf)
		copy(samples[pos:pos+ksmps], chunk)
		buftype.PutSamples(buf, samples)
	}
}

func sinApprox(phase float32) float32 {
	return float32(math.Sin(float64(phase)))
}

// close releases whatever an Instance holds. There's no external resource
// to tear down for the Go-native voice synth (no embedded engine handle),
// but the method exists for symmetry with the slot-swap protocol and as
// the natural place to add one if a future variant needs it.
func (i *Instance) close() {}
