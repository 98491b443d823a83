package buftype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConditionSetupAndSignal(t *testing.T) {
	cond := Condition{}
	buf := make([]byte, cond.Size(HostState{}))
	require.NoError(t, cond.Setup(HostState{}, buf))
	require.True(t, IsInitialized(buf))

	require.NoError(t, ClearConditionFlag(buf))

	done := make(chan error, 1)
	go func() {
		done <- WaitCondition(buf, time.Now().Add(time.Second))
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, SignalCondition(buf))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitCondition did not return after signal")
	}
}

func TestConditionWaitTimesOut(t *testing.T) {
	cond := Condition{}
	buf := make([]byte, cond.Size(HostState{}))
	require.NoError(t, cond.Setup(HostState{}, buf))
	require.NoError(t, ClearConditionFlag(buf))

	err := WaitCondition(buf, time.Now().Add(20*time.Millisecond))
	require.Error(t, err)
}
