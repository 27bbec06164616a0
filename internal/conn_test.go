package internal

import (
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollMillis(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0, pollMillis(-time.Second))
	assert.Equal(0, pollMillis(0))
	assert.Equal(1, pollMillis(time.Nanosecond))
	assert.Equal(1, pollMillis(time.Millisecond))
	assert.Equal(2, pollMillis(1001*time.Microsecond))
	assert.Equal(4000, pollMillis(4*time.Second))
	assert.Equal(math.MaxInt32, pollMillis(time.Duration(math.MaxInt64)))
}

func TestClosedConn(t *testing.T) {
	assert := assert.New(t)
	c := &Conn{fd: -1}

	_, err := c.WriteTo(make([]byte, 8), netip.MustParseAddr("127.0.0.1"))
	assert.ErrorIs(err, errClosed)
	_, _, err = c.ReadFrom(make([]byte, 8))
	assert.ErrorIs(err, errClosed)
	assert.NoError(c.Close())
}

func TestListen(t *testing.T) {
	c, err := Listen()
	if err != nil {
		t.Skipf("raw sockets unavailable: %v", err)
	}
	assert := assert.New(t)
	require := require.New(t)

	require.GreaterOrEqual(c.Fd(), 0)

	_, err = c.WriteTo(make([]byte, 8), netip.MustParseAddr("2001:db8::1"))
	assert.ErrorIs(err, errNotIPv4)

	// nothing to read yet, and the socket must not block
	fds := []PollFd{{Fd: c.Fd(), Events: Writable}}
	require.NoError(Poll(fds, 100*time.Millisecond))
	assert.Equal(Writable, fds[0].Revents)

	require.NoError(c.Close())
	assert.Equal(-1, c.Fd())
	assert.NoError(c.Close())
}
