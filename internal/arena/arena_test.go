package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCreateOpenDestroy(t *testing.T) {
	a, err := Create("noisictest", 4096)
	require.NoError(t, err)
	require.Equal(t, 4096, a.Size())
	require.Len(t, a.Address(), 4096)

	peer, err := Open(a.Name())
	require.NoError(t, err)

	a.Address()[0] = 0x42
	require.Equal(t, byte(0x42), peer.Address()[0])

	require.NoError(t, peer.Destroy())
	require.NoError(t, a.Destroy())
	require.NoError(t, a.Unlink())
}

func TestCreateExclusiveNameCollision(t *testing.T) {
	a, err := Create("noisictest", 64)
	require.NoError(t, err)
	defer func() {
		a.Destroy()
		a.Unlink()
	}()

	// Opening a name nobody created fails.
	_, err = Open(a.Name() + "-does-not-exist")
	require.Error(t, err)

	// Forging the same name a second time must fail with O_EXCL semantics:
	// an exclusive create over the already-existing path is refused.
	fd, err := unix.Open(shmPath(a.Name()), unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0600)
	if err == nil {
		unix.Close(fd)
	}
	require.Error(t, err)
}
