// Package rtsched elevates the calling thread to real-time FIFO scheduling,
// used by both the engine's own audio thread and the plugin-host sidecar.
// Grounded on original_source/noisicaa/audioproc/engine/realtime.cpp's
// set_thread_to_rt_priority: read RLIMIT_RTPRIO, and if a nonzero ceiling is
// available, call sched_setscheduler(SCHED_FIFO) at the maximum allowed
// priority.
package rtsched

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// schedParam mirrors the kernel's struct sched_param, which x/sys/unix
// doesn't wrap directly (sched_setscheduler has no high-level binding);
// its only field on Linux is the priority.
type schedParam struct {
	priority int32
}

// Elevate switches the calling OS thread to SCHED_FIFO at the highest
// priority RLIMIT_RTPRIO allows. Per the Open Question decision recorded in
// DESIGN.md, failure here is never fatal to the caller: callers should log
// a warning and continue at normal priority rather than abort, matching the
// original's "realtime scheduling not available" warning path. Elevate
// itself reports the error; deciding whether that's fatal is the caller's
// call.
//
// Callers on Linux must pin the calling goroutine to its OS thread first
// (runtime.LockOSThread) since scheduling policy is a per-thread attribute.
func Elevate() (priority int, err error) {
	var limits unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_RTPRIO, &limits); err != nil {
		return 0, engineerr.OS(err, "getrlimit(RLIMIT_RTPRIO) failed")
	}

	if limits.Max == 0 {
		return 0, engineerr.InvalidOperation(
			"realtime scheduling not available (RLIMIT_RTPRIO max is 0); " +
				"see http://jackaudio.org/faq/linux_rt_config.html")
	}

	priority = int(limits.Max)
	param := schedParam{priority: int32(priority)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(unix.SCHED_FIFO), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return 0, engineerr.OS(errno, "sched_setscheduler(SCHED_FIFO, priority=%d) failed", priority)
	}
	return priority, nil
}
