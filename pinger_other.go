//go:build !linux

package ping

import "errors"

func (s *Session[P]) SetMark(mark uint) error {
	return errors.New("setting SO_MARK socket option is not supported on this platform")
}
