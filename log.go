package ping

import (
	"sync/atomic"

	"github.com/digineo/go-logwrap"
)

var (
	log = &logwrap.Instance{}

	// SetLogger allows updating the Logger. For details, see
	// "github.com/digineo/go-logwrap".Instance.SetLogger.
	SetLogger = log.SetLogger

	debug atomic.Bool
)

// SetDebug turns tracing on or off. Traces go to the Logger at info level.
func SetDebug(on bool) {
	debug.Store(on)
}

func debugf(format string, args ...interface{}) {
	if debug.Load() {
		log.Infof(format, args...)
	}
}
