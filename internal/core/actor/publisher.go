package actor

import (
	"fmt"
	"time"

	adactor "github.com/berfenger/ecusolar/internal/adapter/actor"
	"github.com/berfenger/ecusolar/internal/config"
	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/internal/core/events"
	. "github.com/berfenger/ecusolar/internal/util/actorutil"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const INITIAL_PUBLISH_DELAY = 500 * time.Millisecond

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// PublisherActor emits sensor update events whenever a new reading shows up,
// either from its own periodic poll of the ECU actor or from a fetch another
// caller triggered. It supervises the MQTT actor that turns those events into
// broker messages.
type PublisherActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler
	cancelFn  scheduler.CancelFunc

	config            *config.Config
	ecuActor          *actor.PID
	ecuDevice         domain.Device
	mqttActor         *actor.PID
	mqttActorProvider MQTTActorProvider
	eventStream       *eventstream.EventStream
	subscription      *eventstream.Subscription
	lastCapturedAt    time.Time

	logger *zap.Logger
}

type publishTick struct {
}

func NewPublisherActor(config *config.Config, ecuActor *actor.PID, ecuDevice domain.Device,
	eventStream *eventstream.EventStream, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *PublisherActor {
	act := &PublisherActor{
		config:            config,
		ecuActor:          ecuActor,
		ecuDevice:         ecuDevice,
		mqttActorProvider: mqttActorProvider,
		eventStream:       eventStream,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		logger:            ActorLogger(domain.ACTOR_ID_PUBLISHER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *PublisherActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PublisherActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("publisher@default started")

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// announce sensors
		if state.config.MQTT.HADiscoveryEnable {
			sensors := domain.SolarSensors(state.ecuDevice)
			sensors = append(sensors, domain.BridgeSensors(domain.BridgeDevice(state.config.MQTT.BaseTopic))...)
			ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{Sensors: sensors})
		}

		// give the MQTT actor time to subscribe to the event stream
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.cancelFn = state.scheduler.RequestOnce(INITIAL_PUBLISH_DELAY, ctx.Self(), publishTick{})
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("publisher@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_PUBLISHER,
			Healthy: true,
			State:   "idle",
		})
	case domain.SolarMetricsUpdatedEvent:
		state.logger.Debug("publisher@default SolarMetricsUpdatedEvent")
		state.publishIfNew(&msg.Metrics)
	case publishTick:
		state.logger.Debug("publisher@default tick")
		state.subscribe(ctx)
		timeout := state.config.ECU.FetchTimeout() + time.Second
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.ecuActor, domain.GetSolarMetricsRequest{}, timeout), func(err error) any {
			return domain.GetSolarMetricsResponse{
				ActorResponseMixIn: domain.ResponseError(err),
			}
		})

		// schedule next tick
		state.cancelFn = state.scheduler.RequestOnce(state.config.MQTT.PublishInterval(), ctx.Self(), publishTick{})
		state.behavior.BecomeStacked(state.WaitingMetricsReceive)
	case *actor.Restarting, *actor.Stopped:
	default:
		state.logger.Debug("publisher@default: ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PublisherActor) WaitingMetricsReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetSolarMetricsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("publisher@waiting GetSolarMetricsResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.publishIfNew(msg.Metrics)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_PUBLISHER,
			Healthy: true,
			State:   "waiting",
		})
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting, *actor.Stopped:
	default:
		state.logger.Debug("publisher@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishIfNew skips records already published, such as a cache hit or a
// stale record served while the ECU is down.
func (state *PublisherActor) publishIfNew(metrics *apsystems_ecu.SolarMetrics) {
	if metrics == nil || metrics.CapturedAt.Equal(state.lastCapturedAt) {
		state.logger.Debug("publisher: no new reading")
		return
	}
	state.lastCapturedAt = metrics.CapturedAt
	for _, ev := range events.SolarMetricsToUpdateEvents(metrics) {
		state.eventStream.Publish(ev)
	}
}

// subscribe forwards readings fetched on behalf of any caller into the mailbox.
func (state *PublisherActor) subscribe(ctx actor.Context) {
	if state.subscription != nil {
		return
	}
	root, self := ctx.ActorSystem().Root, ctx.Self()
	state.subscription = state.eventStream.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.SolarMetricsUpdatedEvent); ok {
			root.Send(self, ev)
		}
	})
}

func (state *PublisherActor) stop() {
	if state.cancelFn != nil {
		state.cancelFn()
	}
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
}

func (state *PublisherActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}
