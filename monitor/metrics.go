package monitor

import "time"

// Metrics is a dumb data point computed from a history of Results.
type Metrics struct {
	PacketsSent int           // number of sweeps
	PacketsLost int           // number of sweeps without reply, unreachable included
	Unreachable int           // number of sweeps the host did not resolve
	Best        time.Duration // best latency
	Worst       time.Duration // worst latency
	Median      time.Duration // median latency
	Mean        time.Duration // mean latency
	StdDev      time.Duration // std deviation
}

// Loss returns the share of sweeps without reply, between 0 and 1.
func (m *Metrics) Loss() float64 {
	if m.PacketsSent == 0 {
		return 0
	}
	return float64(m.PacketsLost) / float64(m.PacketsSent)
}
