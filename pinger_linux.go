package ping

import (
	"os"

	"golang.org/x/sys/unix"
)

// SetMark sets SO_MARK on both sockets, so that policy routing can apply
// to the probes. It needs CAP_NET_ADMIN.
func (s *Session[P]) SetMark(mark uint) error {
	for _, c := range []PacketConn{s.send, s.recv} {
		err := os.NewSyscallError(
			"setsockopt",
			unix.SetsockoptInt(c.Fd(), unix.SOL_SOCKET, unix.SO_MARK, int(mark)),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
