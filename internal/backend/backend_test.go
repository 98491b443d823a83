package backend

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noisicaa-go/engine/internal/vm"
)

func TestNullBackendDiscardsOutput(t *testing.T) {
	n := NewNull()
	require.NoError(t, n.Setup(64))
	require.NoError(t, n.BeginBlock(&vm.BlockContext{}))
	require.NoError(t, n.Output(&vm.BlockContext{}, "left", make([]byte, 256)))
	require.NoError(t, n.EndBlock(&vm.BlockContext{}))
	n.Cleanup()
}

func TestNewUnknownBackendErrors(t *testing.T) {
	_, err := New("not-a-backend", Settings{})
	require.Error(t, err)
}

func TestIPCFrameRoundTrip(t *testing.T) {
	buffers := map[string][]byte{
		"left":  {1, 2, 3, 4},
		"right": {5, 6, 7, 8},
	}
	payload := encodeBlock(128, 42, buffers)

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, payload, got)

	blockSize, samplePos, decoded, err := decodeBlock(got)
	require.NoError(t, err)
	require.Equal(t, uint32(128), blockSize)
	require.Equal(t, int64(42), samplePos)
	require.Equal(t, buffers, decoded)
}

func TestReadFrameRejectsMalformedHeader(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("not-a-header\n"))
	_, err := readFrame(r)
	require.Error(t, err)
}

func TestReadFrameHonorsCloseSignal(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("#CLOSE\n"))
	_, err := readFrame(r)
	require.Error(t, err)
}
