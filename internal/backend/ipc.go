package backend

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/noisicaa-go/engine/internal/engineerr"
	"github.com/noisicaa-go/engine/internal/vm"
)

// IPC exchanges one request frame and one response frame per block over a
// named pipe pair, per spec.md's "Audio-stream IPC frame": line-framed
// `#LEN=<n>\n<n payload bytes>#END\n`, with `#CLOSE\n` signalling shutdown.
// This is the wire format spec.md names directly; the lifecycle shape
// (setup/begin_block reads, end_block writes) is grounded on
// original_source/noisicore/backend_ipc.{h,cpp}, which uses a different
// (capnp) payload encoding not reproduced here.
//
// address names a pipe pair: address+".req" (read by this backend, written
// by the peer) and address+".resp" (written by this backend). Both FIFOs
// are created with mkfifo if absent, matching a named-pipe peer that
// already knows the paths out of band.
type IPC struct {
	address string

	req     *os.File
	reqR    *bufio.Reader
	resp    *os.File

	blockSize uint32
	samplePos int64

	// pending holds this block's staged output buffers, written to the
	// response frame on EndBlock.
	pending map[string][]byte
}

func NewIPC(address string) *IPC {
	return &IPC{address: address, pending: make(map[string][]byte)}
}

func (c *IPC) Setup(blockSize uint32) error {
	c.blockSize = blockSize

	reqPath := c.address + ".req"
	respPath := c.address + ".resp"
	for _, p := range []string{reqPath, respPath} {
		if err := unix.Mkfifo(p, 0o600); err != nil && err != unix.EEXIST {
			return engineerr.OS(err, "failed to create fifo %s", p)
		}
	}

	req, err := os.OpenFile(reqPath, os.O_RDONLY, 0)
	if err != nil {
		return engineerr.OS(err, "failed to open ipc request pipe %s", reqPath)
	}
	c.req = req
	c.reqR = bufio.NewReader(req)

	resp, err := os.OpenFile(respPath, os.O_WRONLY, 0)
	if err != nil {
		return engineerr.OS(err, "failed to open ipc response pipe %s", respPath)
	}
	c.resp = resp

	return nil
}

func (c *IPC) Cleanup() {
	if c.req != nil {
		c.req.Close()
		c.req = nil
	}
	if c.resp != nil {
		c.resp.Close()
		c.resp = nil
	}
}

// BeginBlock reads the peer's request frame and stages its buffers into
// ctx.Buffers, where FETCH_BUFFER picks them up by name.
func (c *IPC) BeginBlock(ctx *vm.BlockContext) error {
	payload, err := readFrame(c.reqR)
	if err != nil {
		return err
	}
	blockSize, samplePos, buffers, err := decodeBlock(payload)
	if err != nil {
		return err
	}
	c.blockSize = blockSize
	c.samplePos = samplePos
	if ctx.Buffers == nil {
		ctx.Buffers = make(map[string]vm.ContextBuffer)
	}
	for name, data := range buffers {
		ctx.Buffers[name] = vm.ContextBuffer{Data: data}
	}
	c.pending = make(map[string][]byte)
	return nil
}

// EndBlock writes this block's accumulated output buffers as one response
// frame.
func (c *IPC) EndBlock(ctx *vm.BlockContext) error {
	payload := encodeBlock(c.blockSize, c.samplePos, c.pending)
	return writeFrame(c.resp, payload)
}

func (c *IPC) Output(ctx *vm.BlockContext, channel string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.pending[channel] = cp
	return nil
}

// Close sends the `#CLOSE\n` shutdown signal before tearing down the pipes.
func (c *IPC) Close() error {
	if c.resp != nil {
		if _, err := c.resp.Write([]byte("#CLOSE\n")); err != nil {
			return engineerr.OS(err, "failed to send ipc close signal")
		}
	}
	c.Cleanup()
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "#LEN=%d\n", len(payload)); err != nil {
		return engineerr.OS(err, "failed to write ipc frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return engineerr.OS(err, "failed to write ipc frame payload")
	}
	if _, err := io.WriteString(w, "#END\n"); err != nil {
		return engineerr.OS(err, "failed to write ipc frame trailer")
	}
	return nil
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, engineerr.ConnectionClosed("ipc peer closed while awaiting frame header")
	}
	if line == "#CLOSE\n" {
		return nil, engineerr.ConnectionClosed("ipc peer sent close signal")
	}
	var n int
	if _, err := fmt.Sscanf(line, "#LEN=%d\n", &n); err != nil {
		return nil, engineerr.InvalidOperation("malformed ipc frame header %q", line)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, engineerr.ConnectionClosed("ipc peer closed mid-frame")
	}
	trailer := make([]byte, len("#END\n"))
	if _, err := io.ReadFull(r, trailer); err != nil || string(trailer) != "#END\n" {
		return nil, engineerr.InvalidOperation("malformed ipc frame trailer")
	}
	return payload, nil
}

// encodeBlock/decodeBlock implement the "typed block structure" spec.md
// names: block_size, sample_pos, and a list of (id, bytes) buffers, as a
// flat little-endian binary layout.
func encodeBlock(blockSize uint32, samplePos int64, buffers map[string][]byte) []byte {
	var out []byte
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], blockSize)
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(samplePos))
	out = append(out, hdr[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(buffers)))
	out = append(out, countBuf[:]...)

	for id, data := range buffers {
		var idLen [4]byte
		binary.LittleEndian.PutUint32(idLen[:], uint32(len(id)))
		out = append(out, idLen[:]...)
		out = append(out, id...)

		var dataLen [4]byte
		binary.LittleEndian.PutUint32(dataLen[:], uint32(len(data)))
		out = append(out, dataLen[:]...)
		out = append(out, data...)
	}
	return out
}

func decodeBlock(payload []byte) (blockSize uint32, samplePos int64, buffers map[string][]byte, err error) {
	if len(payload) < 16 {
		return 0, 0, nil, engineerr.InvalidOperation("ipc payload too short")
	}
	blockSize = binary.LittleEndian.Uint32(payload[0:4])
	samplePos = int64(binary.LittleEndian.Uint64(payload[4:12]))
	count := binary.LittleEndian.Uint32(payload[12:16])

	buffers = make(map[string][]byte, count)
	pos := 16
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(payload) {
			return 0, 0, nil, engineerr.InvalidOperation("ipc payload truncated reading id length")
		}
		idLen := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
		pos += 4
		if pos+idLen > len(payload) {
			return 0, 0, nil, engineerr.InvalidOperation("ipc payload truncated reading id")
		}
		id := string(payload[pos : pos+idLen])
		pos += idLen

		if pos+4 > len(payload) {
			return 0, 0, nil, engineerr.InvalidOperation("ipc payload truncated reading data length")
		}
		dataLen := int(binary.LittleEndian.Uint32(payload[pos : pos+4]))
		pos += 4
		if pos+dataLen > len(payload) {
			return 0, 0, nil, engineerr.InvalidOperation("ipc payload truncated reading data")
		}
		buffers[id] = payload[pos : pos+dataLen]
		pos += dataLen
	}
	return blockSize, samplePos, buffers, nil
}
