// Package riemann talks to a Riemann server: events and messages, their
// protocol buffers encoding, and the length prefixed TCP transport.
package riemann

// States used by the events we emit.
const (
	StateOK       = "ok"
	StateCritical = "critical"
)

// Event is a single Riemann event. Metric is always sent, other fields are
// omitted when empty.
type Event struct {
	Time        int64 // unix seconds
	State       string
	Service     string
	Host        string
	Description string
	Tags        []string
	TTL         float32 // seconds
	Metric      float32
	Attributes  map[string]string
}

// Msg is the envelope exchanged with the server. Requests carry Events,
// acknowledgements carry OK and possibly Error.
type Msg struct {
	OK     *bool
	Error  string
	Events []*Event
}
