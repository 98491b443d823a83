// Package arena owns the single shared-memory region that backs every
// signal buffer in the engine. It is grounded on the teacher's
// sharedmemory/shmi_linux.go shm_open+mmap shim, ported from cgo onto
// golang.org/x/sys/unix so the buffer arena has no C toolchain dependency,
// and on noisicaa/audioproc/engine/buffer_arena.cpp for exact naming and
// teardown semantics. POSIX shared-memory objects are, on Linux, plain
// files under the tmpfs mounted at /dev/shm; shm_open/shm_unlink are thin
// glibc wrappers around open()/unlink() against that path, which is the
// route taken here directly.
package arena

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/noisicaa-go/engine/internal/engineerr"
	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm"

// Arena is a contiguous byte region backed by a named POSIX shared-memory
// object, mapped read/write into this process. It never grows after setup.
type Arena struct {
	name    string
	size    int
	fd      int
	address []byte
}

func shmPath(name string) string {
	return filepath.Join(shmDir, name)
}

// Create allocates a new shared-memory object of the requested size under a
// randomly generated name and maps it into this process. On any failure it
// leaves no orphaned shared-memory name behind.
func Create(engineName string, size int) (*Arena, error) {
	name, err := randomName(engineName)
	if err != nil {
		return nil, engineerr.OS(err, "failed to generate arena name")
	}

	fd, err := unix.Open(shmPath(name), unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
	if err != nil {
		return nil, engineerr.OS(err, "failed to open shmem %s", name)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		unix.Unlink(shmPath(name))
		return nil, engineerr.OS(err, "failed to resize shmem %s", name)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(shmPath(name))
		return nil, engineerr.OS(err, "failed to mmap shmem %s", name)
	}

	return &Arena{name: name, size: size, fd: fd, address: data}, nil
}

// Open maps an existing shared-memory object by name, as done from a sidecar
// process joining the engine's arena. The size is read back from the shared-
// memory object itself via fstat, rather than taken as a parameter, since
// the MEMORY_MAP wire record (spec.md §6) carries no arena-size field. It
// never creates or unlinks the name.
func Open(name string) (*Arena, error) {
	fd, err := unix.Open(shmPath(name), unix.O_RDWR, 0)
	if err != nil {
		return nil, engineerr.OS(err, "failed to open shmem %s", name)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, engineerr.OS(err, "failed to stat shmem %s", name)
	}
	size := int(stat.Size)

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, engineerr.OS(err, "failed to mmap shmem %s", name)
	}

	return &Arena{name: name, size: size, fd: fd, address: data}, nil
}

func randomName(engineName string) (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-bufferarena-%08x-%s", engineName, uint32(time.Now().Unix()), hex.EncodeToString(buf[:])), nil
}

// Address returns the mapped region's base, sized to Size().
func (a *Arena) Address() []byte { return a.address }

// Size returns the arena's fixed byte size.
func (a *Arena) Size() int { return a.size }

// Name returns the shared-memory object's name, as needed by a sidecar's
// MEMORY_MAP handshake.
func (a *Arena) Name() string { return a.name }

// Destroy unmaps and closes the local mapping of the region. Call Unlink
// separately, and only from the process that created the arena, to remove
// the shared-memory name itself at final teardown.
func (a *Arena) Destroy() error {
	if a.address != nil {
		if err := unix.Munmap(a.address); err != nil {
			a.address = nil
			return engineerr.OS(err, "failed to unmap arena %s", a.name)
		}
		a.address = nil
	}
	if a.fd >= 0 {
		unix.Close(a.fd)
		a.fd = -1
	}
	return nil
}

// Unlink removes the shared-memory name. Call only from the process that
// created the arena, at final teardown. Errors are for the caller to log as
// a warning, not to fail teardown on.
func (a *Arena) Unlink() error {
	if err := unix.Unlink(shmPath(a.name)); err != nil {
		return engineerr.OS(err, "failed to unlink shmem %s", a.name)
	}
	return nil
}
