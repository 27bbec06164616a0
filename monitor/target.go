package monitor

import (
	"time"
)

// target is a host followed across sweeps.
type target struct {
	history History
	seen    time.Time // last sweep the host took part in
}
