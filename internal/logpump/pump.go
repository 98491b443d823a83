// Package logpump implements the audio engine's real-time-safe log path: a
// fixed-capacity SPSC ring the audio thread only ever pushes to, drained by
// a background goroutine that reassembles header+continuation blocks and
// forwards finished records to an out-of-band sink. Grounded on
// original_source/noisicaa/core/{logging,pump}.{h,cpp,inl.h}, with the ring
// itself shaped after original_source/noisicaa/core/fifo_queue.h and the
// disruptor-style atomic-cursor ring in
// other_examples' order-matching-engine's internal/disruptor package.
package logpump

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// pollInterval mirrors Pump::thread_main's 500ms condition-variable wait;
// Go's select-on-ticker stands in for the original's wait_for + notify_all.
const pollInterval = 500 * time.Millisecond

// Pump owns the ring and the consumer goroutine. Producers (the audio
// thread) call Emit; Emit never blocks and never allocates more than the
// message itself requires.
type Pump struct {
	ring *ring
	sink *log.Logger

	seq atomic.Uint32

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Pump that forwards reassembled records to sink.
func New(sink *log.Logger) *Pump {
	return &Pump{ring: newRing(), sink: sink}
}

// Setup starts the consumer goroutine, matching Pump::setup.
func (p *Pump) Setup() error {
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.run()
	return nil
}

// Cleanup signals the consumer to stop and waits for it to drain and exit,
// matching Pump::cleanup's notify-then-join.
func (p *Pump) Cleanup() {
	if p.stopCh == nil {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	p.stopCh = nil
}

// Emit frames msg as one header block plus zero or more continuation
// blocks and pushes them onto the ring. A full ring silently drops
// whatever doesn't fit, per spec.md's "full queue drops records silently";
// Emit itself never waits.
func (p *Pump) Emit(logger string, level Level, msg string) {
	if len(msg) == 0 {
		return
	}
	data := []byte(msg)

	seq := p.seq.Add(1) - 1
	hdr, n, continued := encodeHeader(seq, level, logger, data)
	p.ring.push(hdr)
	data = data[n:]

	for continued {
		seq = p.seq.Add(1) - 1
		var cont block
		cont, n, continued = encodeContinuation(seq, data)
		p.ring.push(cont)
		data = data[n:]
	}
}

func (p *Pump) run() {
	defer close(p.doneCh)

	var msg []byte
	var curLogger string
	var curLevel Level
	haveRecord := false

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	drain := func() {
		for {
			b, ok := p.ring.pop()
			if !ok {
				return
			}
			if !haveRecord {
				_, level, logger, payload, continued, ok := decodeHeader(b)
				if !ok {
					continue
				}
				curLevel = level
				curLogger = logger
				msg = append(msg[:0], payload...)
				if continued {
					haveRecord = true
					continue
				}
			} else {
				_, payload, continued, ok := decodeContinuation(b)
				if !ok {
					continue
				}
				msg = append(msg, payload...)
				if continued {
					continue
				}
			}
			p.deliver(curLogger, curLevel, string(msg))
			msg = msg[:0]
			haveRecord = false
		}
	}

	for {
		select {
		case <-ticker.C:
			drain()
		case <-p.stopCh:
			drain()
			return
		}
	}
}

func (p *Pump) deliver(logger string, level Level, msg string) {
	if p.sink == nil {
		return
	}
	l := p.sink.With("logger", logger)
	switch level {
	case LevelDebug:
		l.Debug(msg)
	case LevelInfo:
		l.Info(msg)
	case LevelWarning:
		l.Warn(msg)
	case LevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}
