package sidecar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noisicaa-go/engine/internal/arena"
	"github.com/noisicaa-go/engine/internal/buftype"
	"github.com/noisicaa-go/engine/internal/processor"
)

// recordingProcessor records the Context every ProcessBlock call received,
// so tests can prove the sidecar host actually threads the mapped block
// size and sample position through instead of always passing a zero Context.
type recordingProcessor struct {
	processor.BaseParameters
	id    uint64
	state processor.State

	contexts []processor.Context
}

func (p *recordingProcessor) ID() uint64                       { return p.id }
func (p *recordingProcessor) Ports() []processor.Port          { return nil }
func (p *recordingProcessor) State() processor.State           { return p.state }
func (p *recordingProcessor) Setup() error                     { p.state = processor.StateSetUp; return nil }
func (p *recordingProcessor) Cleanup()                         { p.state = processor.StateTornDown }
func (p *recordingProcessor) ConnectPort(uint32, []byte) error { return nil }
func (p *recordingProcessor) ProcessBlock(ctx processor.Context) error {
	p.contexts = append(p.contexts, ctx)
	return nil
}

// TestHostHandlesMemoryMapAndProcessBlock exercises the sidecar-side
// command parser directly, proving the binary MEMORY_MAP record
// Client.SetMemoryMapping writes is exactly what Host.handleMemoryMap
// reads, that a PROCESS_BLOCK command ends with the shared condition
// signalled, and that the mapped block size reaches the hosted
// processor's Context instead of defaulting to zero.
func TestHostHandlesMemoryMapAndProcessBlock(t *testing.T) {
	a, err := arena.Create("test-engine", 4096)
	require.NoError(t, err)
	defer a.Unlink()
	defer a.Destroy()

	cond := buftype.Condition{}
	condSize := uint64(cond.Size(buftype.HostState{}))
	condOffset := uint64(0)
	require.NoError(t, cond.Setup(buftype.HostState{}, a.Address()[condOffset:condOffset+condSize]))
	condBuf := a.Address()[condOffset : condOffset+condSize]
	require.NoError(t, buftype.ClearConditionFlag(condBuf))

	proc := &recordingProcessor{id: 1}
	require.NoError(t, proc.Setup())

	inR, inW := io.Pipe()
	host := NewHost(proc, inR, io.Discard)

	const blockSize = 256
	payload, err := encodeMemoryMap(MemoryMapping{
		ShmemPath:  a.Name(),
		CondOffset: condOffset,
		BlockSize:  blockSize,
	})
	require.NoError(t, err)

	script := fmt.Sprintf("%s\n%d\n", cmdMemoryMap, len(payload))

	done := make(chan error, 1)
	go func() { done <- host.Run() }()
	go func() {
		io.WriteString(inW, script)
		inW.Write(payload)
		io.WriteString(inW, fmt.Sprintf("%s\n%s\n", cmdProcessBlock, cmdClose))
		inW.Close()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("host.Run did not return")
	}

	require.NoError(t, buftype.WaitCondition(condBuf, time.Now().Add(20*time.Millisecond)))

	require.Len(t, proc.contexts, 1)
	require.EqualValues(t, blockSize, proc.contexts[0].BlockSize)
	require.EqualValues(t, 0, proc.contexts[0].SamplePos)
}

// TestHostAdvancesSamplePosAcrossBlocks proves successive PROCESS_BLOCK
// commands advance SamplePos by the mapped block size each time.
func TestHostAdvancesSamplePosAcrossBlocks(t *testing.T) {
	a, err := arena.Create("test-engine-2", 4096)
	require.NoError(t, err)
	defer a.Unlink()
	defer a.Destroy()

	cond := buftype.Condition{}
	condSize := uint64(cond.Size(buftype.HostState{}))
	require.NoError(t, cond.Setup(buftype.HostState{}, a.Address()[0:condSize]))
	require.NoError(t, buftype.ClearConditionFlag(a.Address()[0:condSize]))

	proc := &recordingProcessor{id: 2}
	require.NoError(t, proc.Setup())

	inR, inW := io.Pipe()
	host := NewHost(proc, inR, io.Discard)

	const blockSize = 64
	payload, err := encodeMemoryMap(MemoryMapping{ShmemPath: a.Name(), CondOffset: 0, BlockSize: blockSize})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- host.Run() }()
	go func() {
		io.WriteString(inW, fmt.Sprintf("%s\n%d\n", cmdMemoryMap, len(payload)))
		inW.Write(payload)
		io.WriteString(inW, fmt.Sprintf("%s\n%s\n%s\n", cmdProcessBlock, cmdProcessBlock, cmdClose))
		inW.Close()
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("host.Run did not return")
	}

	require.Len(t, proc.contexts, 2)
	require.EqualValues(t, 0, proc.contexts[0].SamplePos)
	require.EqualValues(t, blockSize, proc.contexts[1].SamplePos)
}

// statefulProcessor is a minimal processor.Stateful test double: its state
// is just a byte slice that SetState overwrites and GetState returns.
type statefulProcessor struct {
	processor.BaseParameters
	id    uint64
	state processor.State

	data []byte
}

func (p *statefulProcessor) ID() uint64                           { return p.id }
func (p *statefulProcessor) Ports() []processor.Port              { return nil }
func (p *statefulProcessor) State() processor.State               { return p.state }
func (p *statefulProcessor) Setup() error                         { p.state = processor.StateSetUp; return nil }
func (p *statefulProcessor) Cleanup()                             { p.state = processor.StateTornDown }
func (p *statefulProcessor) ConnectPort(uint32, []byte) error     { return nil }
func (p *statefulProcessor) ProcessBlock(processor.Context) error { return nil }
func (p *statefulProcessor) HasState() bool                       { return len(p.data) > 0 }
func (p *statefulProcessor) GetState() ([]byte, error)            { return p.data, nil }
func (p *statefulProcessor) SetState(state []byte) error          { p.data = append([]byte(nil), state...); return nil }

var _ processor.Stateful = (*statefulProcessor)(nil)

// TestHostRoundTripsState drives GET_STATE/SET_STATE through Host directly
// and confirms the NOSTATE/STATE framing client.go's GetState parses.
func TestHostRoundTripsState(t *testing.T) {
	proc := &statefulProcessor{id: 3}
	require.NoError(t, proc.Setup())

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	host := NewHost(proc, inR, outW)

	done := make(chan error, 1)
	go func() { done <- host.Run() }()

	out := newPipeReader(outR)

	// No state yet: GET_STATE must answer NOSTATE.
	io.WriteString(inW, cmdGetState+"\n")
	line, err := out.readLine()
	require.NoError(t, err)
	require.Equal(t, respNoState, line)

	// SET_STATE seeds state, then GET_STATE must echo it back.
	const payload = "saved-state-bytes"
	fmt.Fprintf(inW, "%s\n%d\n%s", cmdSetState, len(payload), payload)

	io.WriteString(inW, cmdGetState+"\n")
	line, err = out.readLine()
	require.NoError(t, err)
	require.Equal(t, respState, line)
	sizeLine, err := out.readLine()
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("%d", len(payload)), sizeLine)
	got, err := out.readN(len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, string(got))

	io.WriteString(inW, cmdClose+"\n")
	inW.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("host.Run did not return")
	}
	require.Equal(t, payload, string(proc.data))
}

// pipeReader wraps a bufio.Reader over an io.PipeReader for line/byte-count
// reads in TestHostRoundTripsState, mirroring how Client parses Host's
// responses.
type pipeReader struct {
	r *bufio.Reader
}

func newPipeReader(r io.Reader) *pipeReader { return &pipeReader{r: bufio.NewReader(r)} }

func (p *pipeReader) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *pipeReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	_, err := io.ReadFull(p.r, buf)
	return buf, err
}
