package monitor

import (
	"math"
	"sort"
	"sync"
	"time"

	ping "github.com/vincentbernat/riemann-puppet-ping"
)

// Result stores the outcome of a single sweep for one host, in particular
// the latency or why there is none.
type Result struct {
	Latency time.Duration
	Outcome ping.Outcome
}

// Lost reports whether no reply was received.
func (r Result) Lost() bool {
	return r.Outcome != ping.OutcomeOK
}

// History represents the ping history for a single host.
type History struct {
	results  []Result
	count    int
	position int
	sync.RWMutex
}

// NewHistory creates a new History object with a specific capacity.
func NewHistory(capacity int) History {
	return History{
		results: make([]Result, capacity),
	}
}

// AddResult saves a sweep result into the internal history.
func (h *History) AddResult(latency time.Duration, outcome ping.Outcome) {
	h.Lock()

	h.results[h.position] = Result{Latency: latency, Outcome: outcome}
	h.position = (h.position + 1) % cap(h.results)

	if h.count < cap(h.results) {
		h.count++
	}

	h.Unlock()
}

// Last returns the most recent result.
func (h *History) Last() (Result, bool) {
	h.RLock()
	defer h.RUnlock()

	if h.count == 0 {
		return Result{}, false
	}
	return h.results[(h.position+cap(h.results)-1)%cap(h.results)], true
}

func (h *History) clear() {
	h.count = 0
	h.position = 0
}

// ComputeAndClear aggregates the result history into a single data point and clears the result set.
func (h *History) ComputeAndClear() *Metrics {
	h.Lock()
	result := h.compute()
	h.clear()
	h.Unlock()

	return result
}

// Compute aggregates the result history into a single data point.
func (h *History) Compute() *Metrics {
	h.RLock()
	defer h.RUnlock()

	return h.compute()
}

func (h *History) compute() *Metrics {
	numLost := 0
	numUnreachable := 0
	numTotal := h.count

	if numTotal == 0 {
		return nil
	}

	data := make([]float64, 0, numTotal)
	var best, worst, stddev, median time.Duration
	var total, sumSquares, mean float64
	var extremeFound bool

	for i := 0; i < numTotal; i++ {
		curr := &h.results[i]
		if curr.Lost() {
			numLost++
			if curr.Outcome == ping.OutcomeUnreachable {
				numUnreachable++
			}
			continue
		}

		data = append(data, float64(curr.Latency))

		if !extremeFound || curr.Latency < best {
			best = curr.Latency
		}
		if !extremeFound || curr.Latency > worst {
			worst = curr.Latency
		}

		extremeFound = true
		total += float64(curr.Latency)
	}

	if size := len(data); size > 0 {
		mean = total / float64(size)
		for _, latency := range data {
			sumSquares += math.Pow(latency-mean, 2)
		}
		stddev = time.Duration(math.Sqrt(sumSquares / float64(size)))

		sort.Float64Slice(data).Sort()
		if size%2 == 0 {
			median = time.Duration((data[size/2-1] + data[size/2]) / 2)
		} else {
			median = time.Duration(data[size/2])
		}
	}

	return &Metrics{
		PacketsSent: numTotal,
		PacketsLost: numLost,
		Unreachable: numUnreachable,
		Best:        best,
		Worst:       worst,
		Median:      median,
		Mean:        time.Duration(mean),
		StdDev:      stddev,
	}
}
