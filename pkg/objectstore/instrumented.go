package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/petroseis/pgi/internal/metrics"
)

// Instrumented wraps a Store with Prometheus counters and latency
// histograms, labeled by backend name.
type Instrumented struct {
	inner Store
	name  string
}

func NewInstrumented(inner Store, name string) *Instrumented {
	return &Instrumented{inner: inner, name: name}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperations.WithLabelValues(s.name, op, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(s.name, op).Observe(time.Since(start).Seconds())
}

func (s *Instrumented) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.inner.Get(ctx, key)
	s.observe("get", start, err)
	return rc, err
}

func (s *Instrumented) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, body, size)
	s.observe("put", start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *Instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.List(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}

// Name returns the backend label used in metrics.
func (s *Instrumented) Name() string { return s.name }
