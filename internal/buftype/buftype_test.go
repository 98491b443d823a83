package buftype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarMix(t *testing.T) {
	a := make([]byte, scalarSize)
	b := make([]byte, scalarSize)
	SetScalar(a, 2.0, 3)
	SetScalar(b, 5.0, 7)

	require.NoError(t, Scalar{}.Mix(a, b))
	require.Equal(t, float32(7.0), ScalarValue(b))
	require.Equal(t, uint32(8), ScalarGeneration(b))
}

func TestScalarScale(t *testing.T) {
	a := make([]byte, scalarSize)
	SetScalar(a, 2.0, 3)
	require.NoError(t, Scalar{}.Scale(a, 4.0))
	require.Equal(t, float32(8.0), ScalarValue(a))
	require.Equal(t, uint32(4), ScalarGeneration(a))
}

func TestAudioBlockMix(t *testing.T) {
	host := HostState{BlockSize: 4}
	blk := AudioBlock{}
	a := make([]byte, blk.Size(host))
	b := make([]byte, blk.Size(host))
	PutSamples(a, []float32{1, 2, 3, 4})
	PutSamples(b, []float32{10, 20, 30, 40})

	require.NoError(t, blk.Mix(a, b))
	require.Equal(t, []float32{11, 22, 33, 44}, Samples(b))
}

func TestAudioBlockScale(t *testing.T) {
	host := HostState{BlockSize: 3}
	blk := AudioBlock{}
	a := make([]byte, blk.Size(host))
	PutSamples(a, []float32{1, 2, 3})
	require.NoError(t, blk.Scale(a, 2.0))
	require.Equal(t, []float32{2, 4, 6}, Samples(a))
}

func TestEventSeqMixOrdersByFrameAndBreaksTiesToFirstInput(t *testing.T) {
	a := make([]byte, EventSeqCapacity)
	b := make([]byte, EventSeqCapacity)

	require.NoError(t, WriteEvents(a, []Event{
		{Frame: 0, Payload: []byte("A")},
		{Frame: 10, Payload: []byte("B")},
		{Frame: 20, Payload: []byte("C")},
	}))
	require.NoError(t, WriteEvents(b, []Event{
		{Frame: 5, Payload: []byte("X")},
		{Frame: 15, Payload: []byte("Y")},
	}))

	require.NoError(t, EventSeq{}.Mix(a, b))

	got, err := ReadEvents(b)
	require.NoError(t, err)
	require.Len(t, got, 5)

	wantFrames := []uint32{0, 5, 10, 15, 20}
	wantPayloads := []string{"A", "X", "B", "Y", "C"}
	for i, ev := range got {
		require.Equal(t, wantFrames[i], ev.Frame)
		require.Equal(t, wantPayloads[i], string(ev.Payload))
	}
}

func TestEventSeqMixTieBreaksToFirstInput(t *testing.T) {
	a := make([]byte, EventSeqCapacity)
	b := make([]byte, EventSeqCapacity)
	require.NoError(t, WriteEvents(a, []Event{{Frame: 10, Payload: []byte("first")}}))
	require.NoError(t, WriteEvents(b, []Event{{Frame: 10, Payload: []byte("second")}}))

	require.NoError(t, EventSeq{}.Mix(a, b))
	got, err := ReadEvents(b)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "first", string(got[0].Payload))
	require.Equal(t, "second", string(got[1].Payload))
}

func TestEventSeqScaleIsUndefined(t *testing.T) {
	require.Error(t, EventSeq{}.Scale(make([]byte, EventSeqCapacity), 1.0))
}
