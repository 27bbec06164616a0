package ping

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/ipv4"
)

// PacketSize is the size of every Echo Request we send, and the number of
// bytes read for every inbound datagram (IPv4 header included).
const PacketSize = 64

// Offsets into an ICMP Echo message.
const (
	offType        = 0
	offCode        = 1
	offChecksum    = 2
	offID          = 4
	offSeq         = 6
	offCorrelation = 8 // the address mask slot of RFC 950
	correlationLen = 4
)

var (
	errShortReply = errors.New("reply too short to carry a correlation id")
	errNotICMP    = errors.New("datagram does not carry an ICMP message")
)

// echoPacket is an outgoing ICMP Echo Request, zero padded to PacketSize.
// The 32-bit word following the echo header carries the correlation id of
// the target the request is sent to.
type echoPacket [PacketSize]byte

func newEchoRequest(id uint16) *echoPacket {
	var p echoPacket
	p[offType] = byte(ipv4.ICMPTypeEcho)
	p[offCode] = 0
	binary.BigEndian.PutUint16(p[offID:offID+2], id)
	return &p
}

func (p *echoPacket) setSeq(seq uint16) {
	binary.BigEndian.PutUint16(p[offSeq:offSeq+2], seq)
}

func (p *echoPacket) setCorrelation(id uint32) {
	binary.BigEndian.PutUint32(p[offCorrelation:offCorrelation+correlationLen], id)
}

// seal recomputes the checksum over the whole packet.
func (p *echoPacket) seal() {
	p[offChecksum], p[offChecksum+1] = 0, 0
	binary.BigEndian.PutUint16(p[offChecksum:offChecksum+2], Checksum(p[:]))
}

// echoReply holds the fields of an inbound ICMP message we correlate on.
type echoReply struct {
	Type        ipv4.ICMPType
	ID          uint16
	Seq         uint16
	Correlation uint32
}

// replyDecoder parses datagrams read from the raw socket: an IPv4 header
// (its length taken from IHL), the ICMP header, then the echo data. It is
// reused across reads and is not safe for concurrent use.
type replyDecoder struct {
	ip4     layers.IPv4
	icmp4   layers.ICMPv4
	payload gopacket.Payload
	decoded []gopacket.LayerType
	parser  *gopacket.DecodingLayerParser
}

func newReplyDecoder() *replyDecoder {
	d := &replyDecoder{
		decoded: make([]gopacket.LayerType, 0, 3),
	}
	d.parser = gopacket.NewDecodingLayerParser(layers.LayerTypeIPv4, &d.ip4, &d.icmp4, &d.payload)
	return d
}

func (d *replyDecoder) decode(b []byte) (echoReply, error) {
	d.payload = nil
	if err := d.parser.DecodeLayers(b, &d.decoded); err != nil {
		return echoReply{}, fmt.Errorf("decoding reply: %w", err)
	}

	var sawICMP bool
	for _, typ := range d.decoded {
		if typ == layers.LayerTypeICMPv4 {
			sawICMP = true
		}
	}
	if !sawICMP {
		return echoReply{}, errNotICMP
	}

	data := d.icmp4.LayerPayload()
	if len(data) < correlationLen {
		return echoReply{}, errShortReply
	}

	return echoReply{
		Type:        ipv4.ICMPType(d.icmp4.TypeCode.Type()),
		ID:          d.icmp4.Id,
		Seq:         d.icmp4.Seq,
		Correlation: binary.BigEndian.Uint32(data[:correlationLen]),
	}, nil
}
