package riemann

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxMessageSize bounds the acknowledgements we accept.
const MaxMessageSize = 16 << 20

// ErrRejected is returned when the server did not acknowledge a message.
var ErrRejected = errors.New("riemann rejected message")

// Client sends messages to a Riemann server over TCP. The connection is
// opened on first use and reopened after any failure.
type Client struct {
	Addr    string        // host:port
	Timeout time.Duration // per message, dialing included; 0 means none

	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a client for addr.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{Addr: addr, Timeout: timeout}
}

// Send writes msg and waits for the server acknowledgement.
func (c *Client) Send(ctx context.Context, msg *Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	if c.conn == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", c.Addr)
		if err != nil {
			return fmt.Errorf("connecting to riemann %s: %w", c.Addr, err)
		}
		c.conn = conn
	}

	ack, err := c.roundTrip(ctx, msg)
	if err != nil {
		c.closeLocked()
		return fmt.Errorf("riemann %s: %w", c.Addr, err)
	}

	if ack.OK == nil || !*ack.OK {
		if ack.Error == "" {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, ack.Error)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, msg *Msg) (*Msg, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := WriteFrame(c.conn, msg.Marshal()); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	body, err := ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	ack := &Msg{}
	if err := ack.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("decoding acknowledgement: %w", err)
	}
	return ack, nil
}

// Close closes the connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// WriteFrame writes body preceded by its length as a 32-bit big-endian
// integer.
func WriteFrame(w io.Writer, body []byte) error {
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	// io.Writer returns an error on short writes
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads a length prefixed body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds %d", size, MaxMessageSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
