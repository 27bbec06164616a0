package ping

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recorder is a Logger keeping every line.
type recorder struct {
	mu    sync.Mutex
	infos []string
	errs  []string
}

func (r *recorder) Infof(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, fmt.Sprintf(format, args...))
}

func (r *recorder) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

type discard struct{}

func (discard) Infof(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// recordLogs routes the package logger to a recorder for the duration of
// the test.
func recordLogs(t *testing.T) *recorder {
	t.Helper()
	rec := &recorder{}
	SetLogger(rec)
	t.Cleanup(func() {
		SetLogger(discard{})
		SetDebug(false)
	})
	return rec
}

func TestDebugf(t *testing.T) {
	rec := recordLogs(t)

	debugf("hidden %d", 1)
	assert.Empty(t, rec.infos)

	SetDebug(true)
	debugf("shown %d", 2)
	assert.Equal(t, []string{"shown 2"}, rec.infos)
	assert.Empty(t, rec.errs)
}
