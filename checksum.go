package ping

// Checksum computes the Internet checksum (RFC 1071) of b: the one's
// complement of the one's complement sum of all 16-bit words. An odd
// trailing byte is padded with a zero byte. The checksum field of b must be
// zeroed by the caller before computing a new checksum.
//
// Words are summed in network byte order and the result is meant to be
// stored big-endian, which puts the same bytes on the wire as the classic
// host-order implementation.
func Checksum(b []byte) uint16 {
	var sum uint32

	n := len(b) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)&1 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}

	for sum>>16 != 0 {
		sum = sum>>16 + sum&0xffff
	}

	return ^uint16(sum)
}
