package ping

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

func TestChecksumZero(t *testing.T) {
	assert.EqualValues(t, 0xffff, Checksum(make([]byte, PacketSize)))
}

func TestChecksumOddLength(t *testing.T) {
	assert := assert.New(t)

	// a trailing byte counts as the high byte of a zero padded word
	assert.Equal(Checksum([]byte{0x12, 0x34, 0x56, 0x00}), Checksum([]byte{0x12, 0x34, 0x56}))
	assert.EqualValues(^uint16(0xab00), Checksum([]byte{0xab}))
}

func TestChecksumCarry(t *testing.T) {
	// 0xffff + 0xffff = 0x1fffe, folded to 0xffff
	assert.EqualValues(t, 0, Checksum([]byte{0xff, 0xff, 0xff, 0xff}))
}

func TestChecksumIdempotent(t *testing.T) {
	assert := assert.New(t)

	pkt := newEchoRequest(0x1234)
	pkt.setSeq(7)
	pkt.setCorrelation(0xdeadbeef)
	pkt.seal()
	sum := binary.BigEndian.Uint16(pkt[offChecksum:])

	// a correct checksum makes the whole message sum to zero
	assert.EqualValues(0, Checksum(pkt[:]))

	pkt.seal()
	assert.Equal(sum, binary.BigEndian.Uint16(pkt[offChecksum:]))
}

func TestChecksumMatchesMarshal(t *testing.T) {
	assert := assert.New(t)

	pkt := newEchoRequest(4242)
	pkt.setSeq(3)
	pkt.setCorrelation(17)
	pkt.seal()

	wm := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   4242,
			Seq:  3,
			Data: pkt[offCorrelation:],
		},
	}
	wb, err := wm.Marshal(nil)
	assert.NoError(err)
	assert.Equal(pkt[:], wb)
}

func BenchmarkChecksum(b *testing.B) {
	pkt := newEchoRequest(1)
	for i := 0; i < b.N; i++ {
		Checksum(pkt[:])
	}
}
