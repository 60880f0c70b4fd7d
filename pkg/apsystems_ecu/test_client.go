package apsystems_ecu

import (
	"sync"
	"time"
)

func CreateTestECUReader() (ECUReader, error) {
	return &TestECUReader{
		Metrics: SolarMetrics{
			CurrentPowerWatt:  3000,
			TodayEnergyKWh:    16.00,
			LifetimeEnergyKWh: 320.0,
			InverterCount:     3,
		},
	}, nil
}

// TestECUReader returns canned metrics and counts calls. Setting Err makes
// every fetch fail; Block holds fetches until the channel is closed.
type TestECUReader struct {
	mu      sync.Mutex
	Metrics SolarMetrics
	Err     error
	Block   chan struct{}
	Now     func() time.Time
	calls   int
}

func (reader *TestECUReader) FetchMetrics() (*SolarMetrics, error) {
	reader.mu.Lock()
	reader.calls++
	block := reader.Block
	reader.mu.Unlock()

	if block != nil {
		<-block
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.Err != nil {
		return nil, reader.Err
	}
	m := reader.Metrics
	if reader.Now != nil {
		m.CapturedAt = reader.Now()
	} else {
		m.CapturedAt = time.Now()
	}
	return &m, nil
}

func (reader *TestECUReader) SetError(err error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.Err = err
}

func (reader *TestECUReader) SetMetrics(m SolarMetrics) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.Metrics = m
}

func (reader *TestECUReader) Calls() int {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	return reader.calls
}
