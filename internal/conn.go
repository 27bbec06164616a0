package internal

import (
	"errors"
	"math"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ProtocolICMP is the number of the Internet Control Message Protocol
// (see golang.org/x/net/internal/iana.ProtocolICMP)
const ProtocolICMP = 1

var (
	errNotIPv4 = errors.New("destination is not an IPv4 address")
	errClosed  = errors.New("socket closed")
)

// Interest is a set of readiness conditions for a descriptor.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// PollFd describes a descriptor handed to a poller. Revents receives the
// subset of Events which is ready.
type PollFd struct {
	Fd      int
	Events  Interest
	Revents Interest
}

// Conn is a non-blocking raw IPv4 socket restricted to ICMP. Reads return
// the IPv4 header followed by the ICMP message, writes take the bare ICMP
// message and let the kernel build the IPv4 header.
type Conn struct {
	fd int
}

// Listen opens a raw ICMP socket in non-blocking mode. This usually needs
// CAP_NET_RAW or root.
func Listen() (*Conn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, ProtocolICMP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("fcntl", err)
	}

	return &Conn{fd: fd}, nil
}

// Fd returns the system file descriptor, or -1 after Close.
func (c *Conn) Fd() int {
	return c.fd
}

// WriteTo sends b to addr. It returns the number of bytes accepted by the
// kernel, which may be less than len(b).
func (c *Conn) WriteTo(b []byte, addr netip.Addr) (int, error) {
	if c.fd < 0 {
		return 0, errClosed
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, errNotIPv4
	}

	n, err := unix.SendmsgN(c.fd, b, nil, &unix.SockaddrInet4{Addr: addr.As4()}, 0)
	if err != nil {
		return n, os.NewSyscallError("sendmsg", err)
	}
	return n, nil
}

// ReadFrom reads a single datagram into b, truncating it if b is too
// small, and returns the sender's address.
func (c *Conn) ReadFrom(b []byte) (int, netip.Addr, error) {
	if c.fd < 0 {
		return 0, netip.Addr{}, errClosed
	}

	n, from, err := unix.Recvfrom(c.fd, b, 0)
	if err != nil {
		return 0, netip.Addr{}, os.NewSyscallError("recvfrom", err)
	}

	var addr netip.Addr
	if sa, ok := from.(*unix.SockaddrInet4); ok {
		addr = netip.AddrFrom4(sa.Addr)
	}
	return n, addr, nil
}

// Close releases the socket. Calling it twice is harmless.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}
	fd := c.fd
	c.fd = -1
	return os.NewSyscallError("close", unix.Close(fd))
}

// Poll waits up to timeout until one of fds is ready and fills in Revents.
// An interrupted wait returns with nothing ready.
func Poll(fds []PollFd, timeout time.Duration) error {
	pfds := make([]unix.PollFd, len(fds))
	for i := range fds {
		fds[i].Revents = 0
		pfds[i].Fd = int32(fds[i].Fd)
		if fds[i].Events&Readable != 0 {
			pfds[i].Events |= unix.POLLIN
		}
		if fds[i].Events&Writable != 0 {
			pfds[i].Events |= unix.POLLOUT
		}
	}

	if _, err := unix.Poll(pfds, pollMillis(timeout)); err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return os.NewSyscallError("poll", err)
	}

	for i := range pfds {
		re := pfds[i].Revents
		// errors and hangups wake up both directions, the following
		// read or write will report them
		if fds[i].Events&Readable != 0 && re&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			fds[i].Revents |= Readable
		}
		if fds[i].Events&Writable != 0 && re&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0 {
			fds[i].Revents |= Writable
		}
	}
	return nil
}

// pollMillis rounds timeout up to whole milliseconds, so that a wait never
// returns before the deadline it was computed from.
func pollMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	ms := timeout / time.Millisecond
	if timeout%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
