package apsystems_ecu

import "time"

// SolarMetrics is a decoded ECU info response. Records are only built from
// complete frames and are never modified afterwards.
type SolarMetrics struct {
	// Instantaneous AC power in watts
	CurrentPowerWatt int
	// Energy produced since local midnight in kWh (2 decimals)
	TodayEnergyKWh float64
	// Energy produced since commissioning in kWh (1 decimal)
	LifetimeEnergyKWh float64
	// Number of inverters reporting to the ECU
	InverterCount int
	// Time the response was decoded
	CapturedAt time.Time
}

type ECUReader interface {
	// FetchMetrics runs a single connect/send/receive cycle against the ECU.
	// It never retries.
	FetchMetrics() (*SolarMetrics, error)
}
