package sidecar

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/engineerr"
)

// Client drives one sidecar subprocess from the audio thread: it owns the
// pipe, remembers the last memory mapping it sent so it only resends one
// when the mapping actually changed, and waits on the shared condition for
// each block to complete. Grounded on processor_plugin.cpp's engine-side
// half of the protocol.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	arenaAddr  []byte
	lastRecord []byte
	condBuf    []byte

	deadline time.Duration
}

// NewClient starts path as a subprocess and wires its stdin/stdout as the
// control pipe. arenaAddr is the engine's own mapping of the shared arena
// the sidecar will be told to attach to.
func NewClient(path string, args []string, arenaAddr []byte) (*Client, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, engineerr.OS(err, "sidecar stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, engineerr.OS(err, "sidecar stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, engineerr.OS(err, "starting sidecar %s", path)
	}

	return &Client{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReader(stdout),
		arenaAddr: arenaAddr,
		deadline:  defaultProcessDeadlineMillis * time.Millisecond,
	}, nil
}

// SetMemoryMapping sends a MEMORY_MAP command only if the encoded record
// (path, condition offset, block size, buffer layout) differs from the one
// the sidecar was last sent, per the original's "_update_memmap"
// change-tracking. The command line carries the record's
// byte length, followed by exactly that many bytes of binary
// PluginMemoryMapping record (spec.md §6) — the READ_MEMMAP_SIZE/
// READ_MEMMAP framing the sidecar's main loop expects.
func (c *Client) SetMemoryMapping(m MemoryMapping) error {
	payload, err := encodeMemoryMap(m)
	if err != nil {
		return err
	}
	if bytes.Equal(payload, c.lastRecord) {
		return nil
	}

	if _, err := fmt.Fprintf(c.stdin, "%s\n%d\n", cmdMemoryMap, len(payload)); err != nil {
		return engineerr.ConnectionClosed("writing memory map header: %v", err)
	}
	if _, err := c.stdin.Write(payload); err != nil {
		return engineerr.ConnectionClosed("writing memory map record: %v", err)
	}

	c.lastRecord = payload
	c.condBuf = conditionBuffer(c.arenaAddr, m.CondOffset)
	return nil
}

// ProcessBlock clears the completion flag, asks the sidecar to process one
// block, and blocks until it signals completion or the deadline elapses.
func (c *Client) ProcessBlock() error {
	if c.condBuf == nil {
		return engineerr.InvalidOperation("sidecar memory mapping not set")
	}
	if err := buftype.ClearConditionFlag(c.condBuf); err != nil {
		return err
	}
	if _, err := io.WriteString(c.stdin, cmdProcessBlock+"\n"); err != nil {
		return engineerr.ConnectionClosed("writing process-block command: %v", err)
	}
	return buftype.WaitCondition(c.condBuf, time.Now().Add(c.deadline))
}

// GetState asks the sidecar for its hosted processor's serialized state,
// mirroring plugin_host.h's has_state/get_state. ok is false when the
// hosted processor reports no state to save.
func (c *Client) GetState() (state []byte, ok bool, err error) {
	if _, err := io.WriteString(c.stdin, cmdGetState+"\n"); err != nil {
		return nil, false, engineerr.ConnectionClosed("writing get-state command: %v", err)
	}

	line, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, false, engineerr.ConnectionClosed("reading get-state response: %v", err)
	}
	switch strings.TrimSpace(line) {
	case respNoState:
		return nil, false, nil
	case respState:
	default:
		return nil, false, engineerr.InvalidOperation("unexpected get-state response %q", line)
	}

	sizeLine, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, false, engineerr.ConnectionClosed("reading state size: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(sizeLine))
	if err != nil || n < 0 {
		return nil, false, engineerr.InvalidOperation("bad state size %q", sizeLine)
	}

	state = make([]byte, n)
	if _, err := io.ReadFull(c.stdout, state); err != nil {
		return nil, false, engineerr.ConnectionClosed("reading state payload: %v", err)
	}
	return state, true, nil
}

// SetState sends previously captured state back to the sidecar for its
// hosted processor to restore.
func (c *Client) SetState(state []byte) error {
	if _, err := fmt.Fprintf(c.stdin, "%s\n%d\n", cmdSetState, len(state)); err != nil {
		return engineerr.ConnectionClosed("writing set-state header: %v", err)
	}
	if _, err := c.stdin.Write(state); err != nil {
		return engineerr.ConnectionClosed("writing set-state payload: %v", err)
	}
	return nil
}

// SetDeadline overrides the default 2-second completion wait, mainly for
// tests.
func (c *Client) SetDeadline(d time.Duration) { c.deadline = d }

// Close asks the sidecar to exit cleanly, then waits for the process.
func (c *Client) Close() error {
	io.WriteString(c.stdin, cmdClose+"\n")
	c.stdin.Close()
	return c.cmd.Wait()
}
