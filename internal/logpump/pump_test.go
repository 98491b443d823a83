package logpump

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversShortMessage(t *testing.T) {
	var buf bytes.Buffer
	sink := log.New(&buf)

	p := New(sink)
	require.NoError(t, p.Setup())
	defer p.Cleanup()

	p.Emit("engine.vm", LevelInfo, "hello world")

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "hello world")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmitSplitsLongMessageAcrossContinuations(t *testing.T) {
	var buf bytes.Buffer
	sink := log.New(&buf)

	p := New(sink)
	require.NoError(t, p.Setup())
	defer p.Cleanup()

	long := strings.Repeat("x", headerPayloadCap+continuationPayloadCap+10)
	p.Emit("engine.vm", LevelError, long)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), long)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRingDropsWhenFull(t *testing.T) {
	r := newRing()
	accepted := 0
	for i := 0; i < ringCapacity+10; i++ {
		if r.push(block{}) {
			accepted++
		}
	}
	require.Equal(t, ringCapacity, accepted)
}

func TestHeaderRoundTrip(t *testing.T) {
	b, n, continued := encodeHeader(7, LevelWarning, "logger.name", []byte("payload"))
	require.Equal(t, 7, n)
	require.False(t, continued)

	seq, level, logger, payload, cont, ok := decodeHeader(b)
	require.True(t, ok)
	require.Equal(t, uint32(7), seq)
	require.Equal(t, LevelWarning, level)
	require.Equal(t, "logger.name", logger)
	require.Equal(t, []byte("payload"), payload)
	require.False(t, cont)
}
