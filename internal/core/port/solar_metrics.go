package port

import (
	"context"

	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"
)

// SolarMetricsService returns the current metrics record, served from cache
// when fresh. It returns domain.ErrECUUnavailable when no record has ever
// been fetched.
type SolarMetricsService interface {
	GetMetrics(ctx context.Context) (*apsystems_ecu.SolarMetrics, error)
}

// FetchObserver receives the outcome of every device fetch and cache hit.
type FetchObserver interface {
	ObserveFetch(metrics *apsystems_ecu.SolarMetrics, err error)
	ObserveCacheHit()
}
