package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/internal/core/port"
	"github.com/berfenger/ecusolar/internal/core/service"
	"github.com/berfenger/ecusolar/internal/util/actorutil"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// ECUActor owns the metrics cache. Requests are served from the cache while
// it is fresh; otherwise a single background fetch is started and every
// request received until it completes shares its result.
type ECUActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	reader       apsystems_ecu.ECUReader
	cache        *service.MetricsCache
	observer     port.FetchObserver
	eventStream  *eventstream.EventStream
	fetchTimeout time.Duration
	waiters      []*actor.PID
	logger       *zap.Logger
}

type fetchResult struct {
	metrics *apsystems_ecu.SolarMetrics
	err     error
}

func NewECUActor(reader apsystems_ecu.ECUReader, cache *service.MetricsCache, observer port.FetchObserver,
	eventStream *eventstream.EventStream, fetchTimeout time.Duration, logger *zap.Logger) *ECUActor {
	if observer == nil {
		observer = noopObserver{}
	}
	act := &ECUActor{
		reader:       reader,
		cache:        cache,
		observer:     observer,
		eventStream:  eventStream,
		fetchTimeout: fetchTimeout,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_ECU, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ECUActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ECUActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("ecu@default started", zap.Duration("ttl", state.cache.TTL()))
	case domain.ActorHealthRequest:
		state.logger.Debug("ecu@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ECU,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetSolarMetricsRequest:
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		if metrics, fresh := state.cache.Fresh(); fresh {
			state.logger.Debug("ecu@default: GetSolarMetricsRequest cache hit")
			state.observer.ObserveCacheHit()
			reply(ctx, replyTo, metricsResponse(metrics, true))
			return
		}
		state.logger.Debug("ecu@default: GetSolarMetricsRequest cache miss")
		state.startFetch(ctx, replyTo)
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		state.logger.Debug("ecu@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ECUActor) FetchingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case fetchResult:
		state.completeFetch(ctx, msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.GetSolarMetricsRequest:
		state.logger.Debug("ecu@fetching: GetSolarMetricsRequest joins in-flight fetch")
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			state.waiters = append(state.waiters, replyTo)
		}
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ECU,
			Healthy: true,
			State:   "fetching",
		})
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		state.logger.Debug("ecu@fetching stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ECUActor) startFetch(ctx actor.Context, replyTo *actor.PID) {
	state.waiters = state.waiters[:0]
	if replyTo != nil {
		state.waiters = append(state.waiters, replyTo)
	}

	reader := state.reader
	timeout := state.fetchTimeout
	start := time.Now()
	actorutil.NewBackgroundTaskNoError(ctx, func() *fetchResult {
		metrics, err := reader.FetchMetrics()
		return &fetchResult{metrics: metrics, err: err}
	}).Recover(func(err error) fetchResult {
		if time.Since(start) >= timeout {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return fetchResult{err: &apsystems_ecu.NetworkError{Op: "fetch", Err: err}}
	}).WithTimeout(state.fetchTimeout).PipeTo(ctx.Self())

	state.behavior.BecomeStacked(state.FetchingReceive)
}

func (state *ECUActor) completeFetch(ctx actor.Context, result fetchResult) {
	if result.err == nil && result.metrics == nil {
		result.err = fmt.Errorf("ecu reader returned no metrics")
	}
	state.observer.ObserveFetch(result.metrics, result.err)

	fresh := false
	if result.err != nil {
		_, hasRecord := state.cache.Age()
		state.logger.Warn("ecu@fetching: query failed",
			zap.String("kind", apsystems_ecu.ErrorKind(result.err)),
			zap.Bool("serving_stale", hasRecord),
			zap.Error(result.err))
	} else {
		state.logger.Debug("ecu@fetching: query ok", zap.Int("power_w", result.metrics.CurrentPowerWatt))
		state.cache.Store(result.metrics)
		fresh = true
		if state.eventStream != nil {
			state.eventStream.Publish(domain.SolarMetricsUpdatedEvent{Metrics: *result.metrics})
		}
	}

	resp := metricsResponse(state.cache.Current(), fresh)
	for _, waiter := range state.waiters {
		reply(ctx, waiter, resp)
	}
	state.waiters = state.waiters[:0]
}

func metricsResponse(metrics *apsystems_ecu.SolarMetrics, fresh bool) domain.GetSolarMetricsResponse {
	if metrics == nil {
		return domain.GetSolarMetricsResponse{
			ActorResponseMixIn: domain.ResponseError(domain.ErrECUUnavailable),
		}
	}
	return domain.GetSolarMetricsResponse{
		Metrics: metrics,
		Fresh:   fresh,
	}
}

func reply(ctx actor.Context, to *actor.PID, msg any) {
	if to != nil {
		ctx.Send(to, msg)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveFetch(*apsystems_ecu.SolarMetrics, error) {}
func (noopObserver) ObserveCacheHit() {}
