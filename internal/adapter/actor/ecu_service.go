package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/internal/core/port"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/asynkron/protoactor-go/actor"
)

// ECUService exposes an ECUActor as a port.SolarMetricsService.
type ECUService struct {
	root    *actor.RootContext
	ecu     *actor.PID
	timeout time.Duration
}

func NewECUService(root *actor.RootContext, ecu *actor.PID, timeout time.Duration) *ECUService {
	return &ECUService{
		root:    root,
		ecu:     ecu,
		timeout: timeout,
	}
}

func (s *ECUService) GetMetrics(ctx context.Context) (*apsystems_ecu.SolarMetrics, error) {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	res, err := s.root.RequestFuture(s.ecu, domain.GetSolarMetricsRequest{}, timeout).Result()
	if err != nil {
		return nil, err
	}
	resp, ok := res.(domain.GetSolarMetricsResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected ecu response %T", res)
	}
	if resp.HasResponseError() {
		return nil, resp.GetResponseError()
	}
	return resp.Metrics, nil
}

// ensure interface compliance
var _ port.SolarMetricsService = (*ECUService)(nil)
