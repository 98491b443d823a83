package buftype

/*
#include <pthread.h>
#include <string.h>
#include <time.h>

typedef struct {
    unsigned int magic;
    pthread_mutex_t mutex;
    pthread_cond_t cond;
    int flag;
} noisic_cond_t;

static const unsigned int NOISIC_COND_MAGIC = 0x34638a33u;

static size_t noisic_cond_size(void) {
    return sizeof(noisic_cond_t);
}

static int noisic_cond_init(void* ptr) {
    noisic_cond_t* c = (noisic_cond_t*)ptr;
    pthread_mutexattr_t mattr;
    pthread_condattr_t cattr;
    int rc;

    if ((rc = pthread_mutexattr_init(&mattr)) != 0) return rc;
    if ((rc = pthread_mutexattr_setpshared(&mattr, PTHREAD_PROCESS_SHARED)) != 0) return rc;
    if ((rc = pthread_condattr_init(&cattr)) != 0) return rc;
    if ((rc = pthread_condattr_setpshared(&cattr, PTHREAD_PROCESS_SHARED)) != 0) return rc;
    if ((rc = pthread_mutex_init(&c->mutex, &mattr)) != 0) return rc;
    if ((rc = pthread_cond_init(&c->cond, &cattr)) != 0) return rc;

    c->flag = 0;
    c->magic = NOISIC_COND_MAGIC;
    return 0;
}

static unsigned int noisic_cond_magic(void* ptr) {
    return ((noisic_cond_t*)ptr)->magic;
}

static int noisic_cond_set_and_signal(void* ptr) {
    noisic_cond_t* c = (noisic_cond_t*)ptr;
    int rc;
    if ((rc = pthread_mutex_lock(&c->mutex)) != 0) return rc;
    c->flag = 1;
    if ((rc = pthread_mutex_unlock(&c->mutex)) != 0) return rc;
    return pthread_cond_broadcast(&c->cond);
}

static int noisic_cond_clear_flag(void* ptr) {
    noisic_cond_t* c = (noisic_cond_t*)ptr;
    int rc;
    if ((rc = pthread_mutex_lock(&c->mutex)) != 0) return rc;
    c->flag = 0;
    return pthread_mutex_unlock(&c->mutex);
}

static int noisic_cond_wait(void* ptr, long long deadline_unix_nsec) {
    noisic_cond_t* c = (noisic_cond_t*)ptr;
    struct timespec ts;
    ts.tv_sec = deadline_unix_nsec / 1000000000LL;
    ts.tv_nsec = deadline_unix_nsec % 1000000000LL;

    int rc = pthread_mutex_lock(&c->mutex);
    if (rc != 0) return rc;

    while (!c->flag) {
        rc = pthread_cond_timedwait(&c->cond, &c->mutex, &ts);
        if (rc != 0) break;
    }

    int unlock_rc = pthread_mutex_unlock(&c->mutex);
    if (rc != 0) return rc;
    return unlock_rc;
}
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/noisicaa-go/engine/internal/engineerr"
)

// ConditionMagic is the sentinel value a condition buffer's magic field
// holds exactly when it has been initialized, per spec.md §3 and §6.
const ConditionMagic = 0x34638a33

// Condition is the fixed cross-process struct (magic, process-shared mutex,
// process-shared condvar, flag) used by the plugin-host sidecar protocol to
// signal per-block completion across a process boundary. Mix and Scale are
// undefined for this type.
type Condition struct{}

func (Condition) Size(HostState) uint32 { return uint32(C.noisic_cond_size()) }

// Setup initializes the mutex and condition variable with process-shared
// attributes so a peer process mapping the same shared memory can wait on
// them, and stamps the sentinel magic value.
func (Condition) Setup(_ HostState, ptr []byte) error {
	rc := C.noisic_cond_init(unsafe.Pointer(&ptr[0]))
	if rc != 0 {
		return engineerr.Pthread(int(rc), "failed to initialize process-shared condition")
	}
	return nil
}

func (Condition) Cleanup(HostState, []byte) error { return nil }

func (Condition) Clear([]byte) error {
	return engineerr.InvalidOperation("condition buffers are not cleared, only initialized")
}

func (Condition) Mix(src, dst []byte) error {
	return errNotMixable("condition")
}

func (Condition) Scale([]byte, float32) error {
	return errNotScalable("condition")
}

// IsInitialized reports whether ptr's magic field carries the condition
// sentinel, per spec.md invariant (iv).
func IsInitialized(ptr []byte) bool {
	return uint32(C.noisic_cond_magic(unsafe.Pointer(&ptr[0]))) == ConditionMagic
}

// SignalCondition is the signaller side of the protocol: lock, set flag,
// unlock, broadcast.
func SignalCondition(ptr []byte) error {
	rc := C.noisic_cond_set_and_signal(unsafe.Pointer(&ptr[0]))
	if rc != 0 {
		return engineerr.Pthread(int(rc), "failed to signal condition")
	}
	return nil
}

// ClearConditionFlag resets the flag under the mutex without signalling,
// done by the waiter before issuing a new PROCESS_BLOCK request.
func ClearConditionFlag(ptr []byte) error {
	rc := C.noisic_cond_clear_flag(unsafe.Pointer(&ptr[0]))
	if rc != 0 {
		return engineerr.Pthread(int(rc), "failed to clear condition flag")
	}
	return nil
}

// WaitCondition is the waiter side: lock, while(!flag) timedwait, unlock,
// bounded by deadline. It returns a Timeout-kind error if the deadline
// elapses before the flag is observed set.
func WaitCondition(ptr []byte, deadline time.Time) error {
	rc := int(C.noisic_cond_wait(unsafe.Pointer(&ptr[0]), C.longlong(deadline.UnixNano())))
	if rc == errTimedOut {
		return engineerr.Timeout("timed out waiting on shared condition")
	}
	if rc != 0 {
		return engineerr.Pthread(rc, "failed to wait on condition")
	}
	return nil
}

// errTimedOut mirrors ETIMEDOUT's value on Linux, returned by
// pthread_cond_timedwait when the deadline elapses.
const errTimedOut = 110
