package sidecar

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noisicaa-go/engine/internal/arena"
	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/processor"
)

// Host runs inside the sidecar subprocess: it reads commands from the
// engine over stdin, maps the shared arena it's pointed at, binds the
// hosted processor's ports to offsets within it, and signals the shared
// condition after each PROCESS_BLOCK. Grounded on plugin_host.cpp's
// main_loop state machine (READ_COMMAND / READ_MEMMAP_SIZE / READ_MEMMAP).
type Host struct {
	proc processor.Processor

	in  *bufio.Reader
	out io.Writer

	arena     *arena.Arena
	condBuf   []byte
	lastPath  string
	blockSize uint32
	samplePos int64

	// memMapScratch is the fixed 20 KiB buffer spec.md §9 calls for: the
	// READ_MEMMAP state reads each record into it instead of allocating a
	// fresh slice per MEMORY_MAP command.
	memMapScratch [maxMemMapRecordSize]byte

	// Elevate is called once at Run startup to request real-time
	// scheduling for this process. A nil or failing Elevate degrades to
	// normal priority without aborting, per the decided Open Question.
	Elevate func() error
}

// NewHost builds a sidecar host around an already-constructed processor
// and the pipe endpoints connecting it to the engine.
func NewHost(proc processor.Processor, in io.Reader, out io.Writer) *Host {
	return &Host{proc: proc, in: bufio.NewReader(in), out: out}
}

// Run reads and executes commands until CLOSE or the pipe is closed,
// returning nil on a clean CLOSE and an engineerr.ConnectionClosed error
// if the engine went away without one.
func (h *Host) Run() error {
	if h.Elevate != nil {
		_ = h.Elevate()
	}

	for {
		line, err := h.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return engineerr.ConnectionClosed("engine pipe closed without CLOSE")
			}
			return engineerr.OS(err, "reading sidecar command")
		}
		cmd := strings.TrimSpace(line)

		switch cmd {
		case cmdClose:
			return nil
		case cmdMemoryMap:
			if err := h.handleMemoryMap(); err != nil {
				return err
			}
		case cmdProcessBlock:
			if err := h.handleProcessBlock(); err != nil {
				return err
			}
		case cmdGetState:
			if err := h.handleGetState(); err != nil {
				return err
			}
		case cmdSetState:
			if err := h.handleSetState(); err != nil {
				return err
			}
		default:
			return engineerr.InvalidOperation("unknown sidecar command %q", cmd)
		}
	}
}

func (h *Host) readLine() (string, error) {
	line, err := h.in.ReadString('\n')
	if err != nil {
		return "", engineerr.ConnectionClosed("reading memory map: %v", err)
	}
	return strings.TrimSpace(line), nil
}

// handleMemoryMap implements the READ_MEMMAP_SIZE then READ_MEMMAP states:
// a decimal length line, then exactly that many bytes of binary
// PluginMemoryMapping record (spec.md §6), read into the fixed scratch
// buffer rather than allocated per call.
func (h *Host) handleMemoryMap() error {
	sizeStr, err := h.readLine()
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(sizeStr)
	if err != nil || n < 0 {
		return engineerr.InvalidOperation("bad memory-map record size %q", sizeStr)
	}
	if n > maxMemMapRecordSize {
		return engineerr.InvalidOperation("memory-map record of %d bytes exceeds the %d byte scratch buffer", n, maxMemMapRecordSize)
	}

	payload := h.memMapScratch[:n]
	if _, err := io.ReadFull(h.in, payload); err != nil {
		return engineerr.ConnectionClosed("reading memory-map record: %v", err)
	}

	mapping, err := decodeMemoryMap(payload)
	if err != nil {
		return err
	}

	// Only remap the arena if the path actually changed, matching
	// plugin_host.cpp's "if (shmem_path == memmap.shmem_path) return" guard.
	if mapping.ShmemPath != h.lastPath {
		if h.arena != nil {
			_ = h.arena.Destroy()
		}
		a, err := arena.Open(mapping.ShmemPath)
		if err != nil {
			return err
		}
		h.arena = a
		h.lastPath = mapping.ShmemPath
	}

	h.condBuf = conditionBuffer(h.arena.Address(), mapping.CondOffset)
	h.blockSize = mapping.BlockSize

	for _, buf := range mapping.Buffers {
		offset := buf.Offset
		size := uint64(mapping.BlockSize) * 4
		if err := h.proc.ConnectPort(buf.PortIndex, h.arena.Address()[offset:offset+size]); err != nil {
			return err
		}
	}

	return nil
}

func (h *Host) handleProcessBlock() error {
	if h.condBuf == nil {
		return engineerr.InvalidOperation("process-block before memory map")
	}
	ctx := processor.Context{BlockSize: h.blockSize, SamplePos: h.samplePos}
	if err := h.proc.ProcessBlock(ctx); err != nil {
		return err
	}
	h.samplePos += int64(h.blockSize)
	return buftype.SignalCondition(h.condBuf)
}

// handleGetState answers GET_STATE, mirroring plugin_host.h's
// has_state/get_state. The hosted processor need not implement
// processor.Stateful at all; that's reported the same way as "no state".
func (h *Host) handleGetState() error {
	stateful, ok := h.proc.(processor.Stateful)
	if !ok || !stateful.HasState() {
		_, err := io.WriteString(h.out, respNoState+"\n")
		return err
	}

	state, err := stateful.GetState()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(h.out, "%s\n%d\n", respState, len(state)); err != nil {
		return err
	}
	_, err = h.out.Write(state)
	return err
}

// handleSetState reads a SET_STATE payload and restores it, mirroring
// plugin_host.h's set_state.
func (h *Host) handleSetState() error {
	sizeStr, err := h.readLine()
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(sizeStr)
	if err != nil || n < 0 {
		return engineerr.InvalidOperation("bad set-state size %q", sizeStr)
	}

	state := make([]byte, n)
	if _, err := io.ReadFull(h.in, state); err != nil {
		return engineerr.ConnectionClosed("reading set-state payload: %v", err)
	}

	stateful, ok := h.proc.(processor.Stateful)
	if !ok {
		return engineerr.InvalidOperation("hosted processor does not support state restore")
	}
	return stateful.SetState(state)
}
