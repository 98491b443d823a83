package buftype

import (
	"encoding/binary"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// EventSeqCapacity is the fixed byte footprint of an event-sequence buffer,
// independent of block size, per spec.md §3.
const EventSeqCapacity = 10240

const (
	eventSeqHeaderSize = 4 // uint32 event count
	eventRecordHeader  = 6 // uint32 frame index + uint16 payload length
	maxEventPayload    = 32
)

// Event is one timestamped record in an event sequence: a frame index
// within the current block and an opaque payload (a MIDI message, for the
// engine's note on/off traffic).
type Event struct {
	Frame   uint32
	Payload []byte
}

// EventSeq is a 10240-byte region holding a typed, time-sorted sequence of
// events. Scale is undefined for this type and always errors.
type EventSeq struct{}

func (EventSeq) Size(HostState) uint32 { return EventSeqCapacity }

func (EventSeq) Setup(HostState, []byte) error { return nil }

func (EventSeq) Cleanup(HostState, []byte) error { return nil }

func (EventSeq) Clear(ptr []byte) error {
	binary.LittleEndian.PutUint32(ptr[0:4], 0)
	return nil
}

// Mix merges two sorted-by-frame event sequences into a scratch region of
// exactly EventSeqCapacity bytes and copies the result back into dst. Ties
// (equal frame index) break with the earlier input — src — winning, per the
// documented (if not strictly binding) rule in spec.md §9.
func (EventSeq) Mix(src, dst []byte) error {
	a, err := ReadEvents(src)
	if err != nil {
		return err
	}
	b, err := ReadEvents(dst)
	if err != nil {
		return err
	}

	merged := make([]Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Frame <= b[j].Frame {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	scratch := make([]byte, EventSeqCapacity)
	if err := WriteEvents(scratch, merged); err != nil {
		return err
	}
	copy(dst, scratch)
	return nil
}

func (EventSeq) Scale([]byte, float32) error {
	return errNotScalable("event-sequence")
}

// ReadEvents decodes the event list held in an event-sequence buffer.
func ReadEvents(buf []byte) ([]Event, error) {
	if len(buf) < eventSeqHeaderSize {
		return nil, engineerr.InvalidOperation("event sequence buffer too small")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	events := make([]Event, 0, count)
	off := eventSeqHeaderSize
	for i := uint32(0); i < count; i++ {
		if off+eventRecordHeader > len(buf) {
			return nil, engineerr.InvalidOperation("event sequence buffer truncated")
		}
		frame := binary.LittleEndian.Uint32(buf[off : off+4])
		length := int(binary.LittleEndian.Uint16(buf[off+4 : off+6]))
		off += eventRecordHeader
		if off+length > len(buf) {
			return nil, engineerr.InvalidOperation("event sequence payload truncated")
		}
		payload := make([]byte, length)
		copy(payload, buf[off:off+length])
		off += length
		events = append(events, Event{Frame: frame, Payload: payload})
	}
	return events, nil
}

// WriteEvents encodes events, already sorted by Frame, into buf. It errors
// if the events don't fit in EventSeqCapacity or a payload exceeds the
// fixed per-event maximum.
func WriteEvents(buf []byte, events []Event) error {
	off := eventSeqHeaderSize
	for _, e := range events {
		if len(e.Payload) > maxEventPayload {
			return engineerr.InvalidOperation("event payload of %d bytes exceeds max %d", len(e.Payload), maxEventPayload)
		}
		if off+eventRecordHeader+len(e.Payload) > len(buf) {
			return engineerr.InvalidOperation("event sequence buffer overflow at %d events", len(events))
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], e.Frame)
		binary.LittleEndian.PutUint16(buf[off+4:off+6], uint16(len(e.Payload)))
		off += eventRecordHeader
		copy(buf[off:], e.Payload)
		off += len(e.Payload)
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(events)))
	return nil
}
