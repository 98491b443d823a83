package rtsched

import (
	"testing"
)

// TestElevateDoesNotPanic exercises the real syscall path. Most sandboxed
// test environments have RLIMIT_RTPRIO capped at 0 or deny
// sched_setscheduler outright, so this only asserts Elevate returns
// cleanly either way — callers are expected to treat a non-nil error as a
// non-fatal "stay at normal priority" signal, never as a test failure.
func TestElevateDoesNotPanic(t *testing.T) {
	_, err := Elevate()
	_ = err
}
