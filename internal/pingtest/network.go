// Package pingtest simulates the raw sockets of a ping session: a pair of
// connections and a poller sharing one fake clock. Echo Requests written
// to known hosts are answered after the host's latency, unless dropped.
package pingtest

import (
	"net"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/vincentbernat/riemann-puppet-ping/internal"
	"golang.org/x/sys/unix"
	testingclock "k8s.io/utils/clock/testing"
)

// Local is the address of the simulated host running the session.
var Local = netip.MustParseAddr("192.0.2.254")

const (
	sendFd = 3
	recvFd = 4
)

// Host describes how a simulated host answers.
type Host struct {
	Latency time.Duration
	Drop    bool       // never answer
	From    netip.Addr // answer from this address instead
}

// Sent is an Echo Request which made it onto the simulated wire.
type Sent struct {
	To     netip.Addr
	At     time.Time
	Packet []byte
}

type delivery struct {
	at   time.Time
	from netip.Addr
	data []byte
}

type write struct {
	n   int
	err error
}

// Network is a simulated network. It is not safe for concurrent use, like
// the session it serves.
type Network struct {
	Clock *testingclock.FakeClock

	hosts  map[netip.Addr]Host
	queue  []delivery // by delivery time
	writes []write    // scripted outcomes of the next writes
	sent   []Sent
	send   *Conn
	recv   *Conn
}

// New returns a network whose clock starts at start.
func New(start time.Time) *Network {
	n := &Network{
		Clock: testingclock.NewFakeClock(start),
		hosts: make(map[netip.Addr]Host),
	}
	n.send = &Conn{net: n, fd: sendFd}
	n.recv = &Conn{net: n, fd: recvFd}
	return n
}

// AddHost makes addr answer Echo Requests as described by h.
func (n *Network) AddHost(addr netip.Addr, h Host) {
	n.hosts[addr] = h
}

// Sender returns the connection requests are written to.
func (n *Network) Sender() *Conn { return n.send }

// Receiver returns the connection replies are read from.
func (n *Network) Receiver() *Conn { return n.recv }

// FailWrites makes the next count writes fail with errno.
func (n *Network) FailWrites(errno unix.Errno, count int) {
	for range count {
		n.writes = append(n.writes, write{err: errno})
	}
}

// ShortWrites makes the next count writes accept only size bytes. Nothing
// is delivered for them.
func (n *Network) ShortWrites(size, count int) {
	for range count {
		n.writes = append(n.writes, write{n: size})
	}
}

// Inject queues a raw datagram, IPv4 header included, for delivery after
// delay.
func (n *Network) Inject(delay time.Duration, from netip.Addr, datagram []byte) {
	n.deliver(n.Clock.Now().Add(delay), from, datagram)
}

// Sent returns the requests written so far.
func (n *Network) Sent() []Sent {
	return n.sent
}

// Poll implements the session poller. The send side is always writable.
// When nothing is ready, the clock moves forward to the next delivery or
// to the end of timeout, whichever comes first.
func (n *Network) Poll(fds []internal.PollFd, timeout time.Duration) error {
	if n.ready(fds) {
		return nil
	}

	until := n.Clock.Now().Add(timeout)
	if len(n.queue) > 0 && n.queue[0].at.Before(until) {
		until = n.queue[0].at
	}
	n.Clock.SetTime(until)
	n.ready(fds)
	return nil
}

func (n *Network) ready(fds []internal.PollFd) bool {
	var found bool
	for i := range fds {
		fds[i].Revents = 0
		switch {
		case fds[i].Fd == sendFd && fds[i].Events&internal.Writable != 0:
			fds[i].Revents = internal.Writable
		case fds[i].Fd == recvFd && fds[i].Events&internal.Readable != 0 && n.due():
			fds[i].Revents = internal.Readable
		}
		found = found || fds[i].Revents != 0
	}
	return found
}

func (n *Network) due() bool {
	return len(n.queue) > 0 && !n.queue[0].at.After(n.Clock.Now())
}

func (n *Network) deliver(at time.Time, from netip.Addr, data []byte) {
	i := sort.Search(len(n.queue), func(i int) bool {
		return n.queue[i].at.After(at)
	})
	n.queue = append(n.queue, delivery{})
	copy(n.queue[i+1:], n.queue[i:])
	n.queue[i] = delivery{at: at, from: from, data: data}
}

func (n *Network) write(b []byte, addr netip.Addr) (int, error) {
	if len(n.writes) > 0 {
		w := n.writes[0]
		n.writes = n.writes[1:]
		if w.err != nil {
			return 0, os.NewSyscallError("sendmsg", w.err)
		}
		return w.n, nil
	}

	pkt := append([]byte(nil), b...)
	n.sent = append(n.sent, Sent{To: addr, At: n.Clock.Now(), Packet: pkt})

	h, ok := n.hosts[addr]
	if !ok || h.Drop || len(pkt) < 8 || pkt[0] != uint8(layers.ICMPv4TypeEchoRequest) {
		return len(b), nil
	}

	from := addr
	if h.From.IsValid() {
		from = h.From
	}
	id := uint16(pkt[4])<<8 | uint16(pkt[5])
	seq := uint16(pkt[6])<<8 | uint16(pkt[7])
	n.deliver(n.Clock.Now().Add(h.Latency), from,
		Datagram(from, Local, layers.ICMPv4TypeEchoReply, id, seq, pkt[8:]))
	return len(b), nil
}

func (n *Network) read(b []byte) (int, netip.Addr, error) {
	if !n.due() {
		return 0, netip.Addr{}, os.NewSyscallError("recvfrom", unix.EAGAIN)
	}
	d := n.queue[0]
	n.queue = n.queue[1:]
	return copy(b, d.data), d.from, nil
}

// Datagram builds an IPv4 datagram carrying an ICMP Echo message, as read
// from a raw socket.
func Datagram(src, dst netip.Addr, typ uint8, id, seq uint16, data []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IP(src.AsSlice()),
		DstIP:    net.IP(dst.AsSlice()),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, 0),
		Id:       id,
		Seq:      seq,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, icmp, gopacket.Payload(data)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Conn is one side of the simulated raw socket pair.
type Conn struct {
	net    *Network
	fd     int
	closed bool
}

func (c *Conn) Fd() int { return c.fd }

func (c *Conn) WriteTo(b []byte, addr netip.Addr) (int, error) {
	return c.net.write(b, addr)
}

func (c *Conn) ReadFrom(b []byte) (int, netip.Addr, error) {
	return c.net.read(b)
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool { return c.closed }
