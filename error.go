package ping

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrAlreadyRun is returned by Run on a session which already ran.
	ErrAlreadyRun = errors.New("session already ran")

	errShortWrite = errors.New("short write")
)

// isTransient reports whether a failed send or receive may succeed when
// tried again later.
func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ENOBUFS) ||
		errors.Is(err, errShortWrite)
}
