package monitor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter serves the metrics of a registry over HTTP.
type Exporter struct {
	addr    string
	handler http.Handler
}

// NewExporter returns an exporter for the metrics gathered by g, to be
// served on addr.
func NewExporter(addr string, g prometheus.Gatherer) *Exporter {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Exporter{addr: addr, handler: mux}
}

// Handler returns the HTTP handler.
func (e *Exporter) Handler() http.Handler {
	return e.handler
}

// Run listens and serves in the background until ctx is done. It returns
// the bound address.
func (e *Exporter) Run(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:      e.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics exporter: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		debugf("stopping metrics exporter")
		srv.Close()
	}()

	log.Infof("metrics exporter listening on %s", ln.Addr())
	return ln.Addr(), nil
}
