package ping

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vincentbernat/riemann-puppet-ping/internal/pingtest"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

func TestEchoRequestLayout(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	pkt := newEchoRequest(0xbeef)
	pkt.setSeq(2)
	pkt.setCorrelation(0x01020304)
	pkt.seal()

	assert.Len(pkt[:], 64)
	assert.EqualValues(8, pkt[offType])
	assert.EqualValues(0, pkt[offCode])
	assert.Equal([]byte{0xbe, 0xef}, pkt[offID:offID+2])
	assert.Equal([]byte{0x00, 0x02}, pkt[offSeq:offSeq+2])
	assert.Equal([]byte{1, 2, 3, 4}, pkt[offCorrelation:offCorrelation+correlationLen])
	assert.Equal(make([]byte, PacketSize-12), pkt[12:])

	msg, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), pkt[:])
	require.NoError(err)
	assert.Equal(ipv4.ICMPTypeEcho, msg.Type)
	require.IsType(&icmp.Echo{}, msg.Body)

	echo := msg.Body.(*icmp.Echo)
	assert.Equal(0xbeef, echo.ID)
	assert.Equal(2, echo.Seq)
	assert.EqualValues(0x01020304, binary.BigEndian.Uint32(echo.Data))
}

func TestDecodeReply(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	data := make([]byte, PacketSize-8)
	binary.BigEndian.PutUint32(data, 99)
	src := netip.MustParseAddr("198.51.100.7")

	dgram := pingtest.Datagram(src, pingtest.Local, 0, 0x4242, 5, data)
	d := newReplyDecoder()

	// a raw socket read truncates to the packet size
	reply, err := d.decode(dgram[:PacketSize])
	require.NoError(err)
	assert.Equal(echoReply{
		Type:        ipv4.ICMPTypeEchoReply,
		ID:          0x4242,
		Seq:         5,
		Correlation: 99,
	}, reply)

	// the decoder is reusable
	reply, err = d.decode(pingtest.Datagram(src, pingtest.Local, 8, 1, 2, data))
	require.NoError(err)
	assert.Equal(ipv4.ICMPTypeEcho, reply.Type)
	assert.EqualValues(1, reply.ID)
}

func TestDecodeShort(t *testing.T) {
	assert := assert.New(t)
	d := newReplyDecoder()
	src := netip.MustParseAddr("198.51.100.7")

	// no room for the correlation id
	_, err := d.decode(pingtest.Datagram(src, pingtest.Local, 0, 1, 1, []byte{1, 2}))
	assert.ErrorIs(err, errShortReply)

	// not even a full IPv4 header
	_, err = d.decode([]byte{0x45, 0x00, 0x00})
	assert.Error(err)

	_, err = d.decode(nil)
	assert.Error(err)
}
