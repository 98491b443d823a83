// Package sidecar implements the out-of-process plugin host protocol: the
// engine-side client that drives a plugin subprocess over a pipe plus a
// shared-memory arena, and the sidecar-side main loop that runs inside
// that subprocess. Grounded on
// original_source/noisicaa/audioproc/engine/plugin_host.{h,cpp} (sidecar
// main loop) and noisicore/processor_plugin.cpp (engine-side protocol).
package sidecar

import (
	"bytes"
	"encoding/binary"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
)

// Line-framed commands exchanged over the pipe, matching the original's
// READ_COMMAND states (MEMORY_MAP, PROCESS_BLOCK) plus an explicit close
// so the sidecar can distinguish a clean shutdown from a broken pipe.
const (
	cmdMemoryMap    = "MEMORY_MAP"
	cmdProcessBlock = "PROCESS_BLOCK"
	cmdGetState     = "GET_STATE"
	cmdSetState     = "SET_STATE"
	cmdClose        = "CLOSE"
)

// Responses to GET_STATE: respState is followed by a decimal length line
// and that many state bytes; respNoState means the hosted processor
// reported has_state() == false. Supplemental to spec.md's documented
// commands, grounding plugin_host.h's has_state/get_state/set_state (see
// SPEC_FULL.md §9).
const (
	respState   = "STATE"
	respNoState = "NOSTATE"
)

// defaultProcessDeadlineMillis bounds how long the engine waits for a sidecar to
// finish one block before treating it as a timeout, matching
// processor_plugin.cpp's 2-second pthread_cond_timedwait bound.
const defaultProcessDeadlineMillis = 2000

// pathMax matches Linux's PATH_MAX, the fixed width spec.md §6 gives the
// PluginMemoryMapping record's shmem_path field.
const pathMax = 4096

// maxMemMapRecordSize bounds one MEMORY_MAP payload: the fixed
// PluginMemoryMapping header plus up to 1364 buffer records, the size of
// the 20 KiB scratch buffer spec.md §9 calls for. A record that
// claims to be larger is rejected rather than grown into.
const maxMemMapRecordSize = 20 * 1024

// memMapHeaderSize is shmem_path[pathMax] + cond_offset:u64 + block_size:u32
// + num_buffers:u32.
const memMapHeaderSize = pathMax + 8 + 4 + 4

// memMapBufferRecordSize is port_index:u32 + offset:u64.
const memMapBufferRecordSize = 4 + 8

// MemoryMapping describes the shared-memory arena a sidecar must attach to
// and the buffers within it that back its ports, matching
// PluginMemoryMapping / PluginHost::Buffer in plugin_host.h.
type MemoryMapping struct {
	// ShmemPath is the arena's bare name (arena.Arena.Name()), not a
	// filesystem path; internal/arena resolves it under /dev/shm itself.
	ShmemPath  string
	CondOffset uint64
	BlockSize  uint32
	Buffers    []BufferEntry
}

// BufferEntry binds one port index to its byte offset within the arena.
type BufferEntry struct {
	PortIndex uint32
	Offset    uint64
}

// conditionBuffer carves the process-shared condition variable out of an
// arena by its byte offset, for SignalCondition/WaitCondition/
// ClearConditionFlag calls against it.
func conditionBuffer(arenaAddr []byte, offset uint64) []byte {
	size := buftype.Condition{}.Size(buftype.HostState{})
	return arenaAddr[offset : offset+uint64(size)]
}

// encodeMemoryMap renders m as the binary PluginMemoryMapping record
// spec.md §6 describes: a fixed shmem_path[pathMax]/cond_offset/block_size/
// num_buffers header, little-endian, followed by num_buffers (port_index,
// offset) records.
func encodeMemoryMap(m MemoryMapping) ([]byte, error) {
	if len(m.ShmemPath) >= pathMax {
		return nil, engineerr.InvalidOperation("shmem path %q exceeds PATH_MAX", m.ShmemPath)
	}

	out := make([]byte, memMapHeaderSize+len(m.Buffers)*memMapBufferRecordSize)
	copy(out[0:pathMax], m.ShmemPath)
	binary.LittleEndian.PutUint64(out[pathMax:pathMax+8], m.CondOffset)
	binary.LittleEndian.PutUint32(out[pathMax+8:pathMax+12], m.BlockSize)
	binary.LittleEndian.PutUint32(out[pathMax+12:pathMax+16], uint32(len(m.Buffers)))

	off := memMapHeaderSize
	for _, buf := range m.Buffers {
		binary.LittleEndian.PutUint32(out[off:off+4], buf.PortIndex)
		binary.LittleEndian.PutUint64(out[off+4:off+12], buf.Offset)
		off += memMapBufferRecordSize
	}
	return out, nil
}

// decodeMemoryMap parses a PluginMemoryMapping record out of payload, which
// must be exactly the declared record length (the caller already read
// exactly N bytes per the MEMORY_MAP\n<N>\n framing).
func decodeMemoryMap(payload []byte) (MemoryMapping, error) {
	if len(payload) < memMapHeaderSize {
		return MemoryMapping{}, engineerr.InvalidOperation("memory-map record shorter than fixed header")
	}

	path := cstring(payload[0:pathMax])
	condOffset := binary.LittleEndian.Uint64(payload[pathMax : pathMax+8])
	blockSize := binary.LittleEndian.Uint32(payload[pathMax+8 : pathMax+12])
	numBuffers := binary.LittleEndian.Uint32(payload[pathMax+12 : pathMax+16])

	want := memMapHeaderSize + int(numBuffers)*memMapBufferRecordSize
	if len(payload) != want {
		return MemoryMapping{}, engineerr.InvalidOperation(
			"memory-map record declares %d buffers but payload is %d bytes, want %d", numBuffers, len(payload), want)
	}

	m := MemoryMapping{ShmemPath: path, CondOffset: condOffset, BlockSize: blockSize}
	off := memMapHeaderSize
	for i := uint32(0); i < numBuffers; i++ {
		portIdx := binary.LittleEndian.Uint32(payload[off : off+4])
		offset := binary.LittleEndian.Uint64(payload[off+4 : off+12])
		m.Buffers = append(m.Buffers, BufferEntry{PortIndex: portIdx, Offset: offset})
		off += memMapBufferRecordSize
	}
	return m, nil
}

// cstring trims a fixed-width, null-padded byte field down to its string
// content, the same convention internal/logpump uses for its logger-name
// field.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
