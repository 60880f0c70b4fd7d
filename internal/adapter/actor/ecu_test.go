package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/internal/core/service"
	"github.com/berfenger/ecusolar/internal/util"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingObserver struct {
	mu        sync.Mutex
	successes int
	failures  []error
	hits      int
}

func (o *countingObserver) ObserveFetch(_ *apsystems_ecu.SolarMetrics, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures = append(o.failures, err)
		return
	}
	o.successes++
}

func (o *countingObserver) ObserveCacheHit() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits++
}

func (o *countingObserver) counts() (successes, failures, hits int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.successes, len(o.failures), o.hits
}

type ecuFixture struct {
	system   *actor.ActorSystem
	reader   *apsystems_ecu.TestECUReader
	clock    *util.FakeClock
	cache    *service.MetricsCache
	observer *countingObserver
	events   *eventstream.EventStream
	service  *ECUService
}

func newECUFixture(t *testing.T, fetchTimeout time.Duration) *ecuFixture {
	clock := util.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local))
	reader := &apsystems_ecu.TestECUReader{
		Metrics: apsystems_ecu.SolarMetrics{
			CurrentPowerWatt:  3000,
			TodayEnergyKWh:    16.00,
			LifetimeEnergyKWh: 320.0,
			InverterCount:     3,
		},
		Now: clock.Now,
	}
	f := &ecuFixture{
		system:   actor.NewActorSystem(),
		reader:   reader,
		clock:    clock,
		cache:    service.NewMetricsCache(30*time.Second, clock.Now),
		observer: &countingObserver{},
		events:   eventstream.NewEventStream(),
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewECUActor(f.reader, f.cache, f.observer, f.events, fetchTimeout, zap.NewNop())
	})
	pid, err := f.system.Root.SpawnNamed(props, domain.ACTOR_ID_ECU)
	require.NoError(t, err)
	f.service = NewECUService(f.system.Root, pid, fetchTimeout+2*time.Second)

	t.Cleanup(func() {
		f.system.Root.Stop(pid)
		f.system.Shutdown()
	})
	return f
}

func TestECUActorServesFreshCache(t *testing.T) {
	require := require.New(t)
	f := newECUFixture(t, time.Second)

	first, err := f.service.GetMetrics(context.Background())
	require.NoError(err)
	f.clock.Advance(10 * time.Second)
	second, err := f.service.GetMetrics(context.Background())
	require.NoError(err)

	require.Equal(1, f.reader.Calls())
	require.Equal(first.CapturedAt, second.CapturedAt)
	require.Equal(3000, second.CurrentPowerWatt)
	successes, _, hits := f.observer.counts()
	require.Equal(1, successes)
	require.Equal(1, hits)
}

func TestECUActorRefetchesAfterTTL(t *testing.T) {
	require := require.New(t)
	f := newECUFixture(t, time.Second)

	first, err := f.service.GetMetrics(context.Background())
	require.NoError(err)

	f.clock.Advance(30 * time.Second)
	f.reader.SetMetrics(apsystems_ecu.SolarMetrics{CurrentPowerWatt: 1200, InverterCount: 3})

	second, err := f.service.GetMetrics(context.Background())
	require.NoError(err)
	require.Equal(2, f.reader.Calls())
	require.Equal(1200, second.CurrentPowerWatt)
	require.True(second.CapturedAt.After(first.CapturedAt))

	// the new record is fresh again
	_, err = f.service.GetMetrics(context.Background())
	require.NoError(err)
	require.Equal(2, f.reader.Calls())
}

func TestECUActorServesStaleOnFailure(t *testing.T) {
	require := require.New(t)
	f := newECUFixture(t, time.Second)

	first, err := f.service.GetMetrics(context.Background())
	require.NoError(err)

	f.clock.Advance(5 * time.Minute)
	f.reader.SetError(&apsystems_ecu.NetworkError{Op: "dial", Err: errors.New("connection refused")})

	res, err := f.system.Root.RequestFuture(f.service.ecu, domain.GetSolarMetricsRequest{}, 3*time.Second).Result()
	require.NoError(err)
	resp := res.(domain.GetSolarMetricsResponse)
	require.False(resp.HasResponseError())
	require.False(resp.Fresh)
	require.Equal(first.CapturedAt, resp.Metrics.CapturedAt)

	// every request past TTL retries the device
	stale, err := f.service.GetMetrics(context.Background())
	require.NoError(err)
	require.Equal(first.CapturedAt, stale.CapturedAt)
	require.Equal(3, f.reader.Calls())
	_, failures, _ := f.observer.counts()
	require.Equal(2, failures)
}

func TestECUActorUnavailableWithoutRecord(t *testing.T) {
	f := newECUFixture(t, time.Second)
	f.reader.SetError(&apsystems_ecu.NetworkError{Op: "dial", Err: errors.New("no route to host")})

	m, err := f.service.GetMetrics(context.Background())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, domain.ErrECUUnavailable)

	// recovers once the device answers again
	f.reader.SetError(nil)
	m, err = f.service.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, m.InverterCount)
}

func TestECUActorCollapsesConcurrentMisses(t *testing.T) {
	f := newECUFixture(t, 5*time.Second)
	block := make(chan struct{})
	f.reader.Block = block

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*apsystems_ecu.SolarMetrics, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.GetMetrics(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.reader.Calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	close(block)
	wg.Wait()

	assert.Equal(t, 1, f.reader.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].CapturedAt, results[i].CapturedAt)
	}
}

func TestECUActorFetchTimeout(t *testing.T) {
	f := newECUFixture(t, 200*time.Millisecond)
	block := make(chan struct{})
	f.reader.Block = block
	t.Cleanup(func() { close(block) })

	start := time.Now()
	m, err := f.service.GetMetrics(context.Background())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, domain.ErrECUUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)

	f.observer.mu.Lock()
	defer f.observer.mu.Unlock()
	require.Len(t, f.observer.failures, 1)
	assert.Equal(t, apsystems_ecu.ERROR_KIND_TIMEOUT, apsystems_ecu.ErrorKind(f.observer.failures[0]))
}

func TestECUActorPublishesUpdates(t *testing.T) {
	f := newECUFixture(t, time.Second)

	updates := make(chan domain.SolarMetricsUpdatedEvent, 4)
	f.events.Subscribe(func(evt any) {
		if e, ok := evt.(domain.SolarMetricsUpdatedEvent); ok {
			updates <- e
		}
	})

	_, err := f.service.GetMetrics(context.Background())
	require.NoError(t, err)

	select {
	case e := <-updates:
		assert.Equal(t, 3000, e.Metrics.CurrentPowerWatt)
	case <-time.After(2 * time.Second):
		t.Fatal("no update event published")
	}

	// cache hits publish nothing
	_, err = f.service.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Len(t, updates, 0)
}

func TestECUServiceHonorsContextDeadline(t *testing.T) {
	f := newECUFixture(t, 5*time.Second)
	block := make(chan struct{})
	f.reader.Block = block
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := f.service.GetMetrics(ctx)
	assert.Error(t, err)
}

func TestECUActorHealth(t *testing.T) {
	f := newECUFixture(t, time.Second)

	res, err := f.system.Root.RequestFuture(f.service.ecu, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Equal(t, domain.ACTOR_ID_ECU, health.Id)
}
