package studentlock

import (
	"context"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/observability/metrics"
)

type instrumented struct {
	next    Locker
	metrics *metrics.LedgerMetrics
}

// WithMetrics records lock wait time for every acquisition.
func WithMetrics(next Locker, m *metrics.LedgerMetrics) Locker {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (i *instrumented) Backend() string { return i.next.Backend() }

func (i *instrumented) Lock(ctx context.Context, studentIDs ...string) (func(), error) {
	start := time.Now()
	release, err := i.next.Lock(ctx, studentIDs...)
	if err == nil {
		i.metrics.ObserveLockWait(i.next.Backend(), len(normalizeKeys(studentIDs)), time.Since(start))
	}
	return release, err
}
