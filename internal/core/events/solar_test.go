package events

import (
	"testing"

	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolarMetricsToUpdateEvents(t *testing.T) {
	require := require.New(t)

	evs := SolarMetricsToUpdateEvents(&apsystems_ecu.SolarMetrics{
		CurrentPowerWatt:  3000,
		TodayEnergyKWh:    16.00,
		LifetimeEnergyKWh: 320.0,
		InverterCount:     3,
	})
	require.Len(evs, 4)

	byId := map[string]domain.SensorUpdateEvent{}
	for _, ev := range evs {
		byId[ev.SensorId()] = ev
	}

	power := byId[domain.SENSOR_ID_SOLAR_CURRENT_POWER].(domain.IntSensorUpdateEvent)
	require.Equal(3000, power.Value)

	today := byId[domain.SENSOR_ID_SOLAR_TODAY_ENERGY].(domain.FloatSensorUpdateEvent)
	require.Equal(16.0, today.Value)
	require.Equal(uint(2), today.Decimals)

	lifetime := byId[domain.SENSOR_ID_SOLAR_LIFETIME_ENERGY].(domain.FloatSensorUpdateEvent)
	require.Equal(320.0, lifetime.Value)
	require.Equal(uint(1), lifetime.Decimals)

	count := byId[domain.SENSOR_ID_SOLAR_INVERTER_COUNT].(domain.IntSensorUpdateEvent)
	require.Equal(3, count.Value)
}

func TestSolarMetricsToUpdateEventsNil(t *testing.T) {
	assert.Empty(t, SolarMetricsToUpdateEvents(nil))
}

func TestEventsMatchSensors(t *testing.T) {
	sensors := domain.SolarSensors(domain.ECUDevice("216200094701", ""))
	evs := SolarMetricsToUpdateEvents(&apsystems_ecu.SolarMetrics{})
	require.Len(t, evs, len(sensors))
	for i := range sensors {
		assert.Equal(t, sensors[i].Id, evs[i].SensorId())
	}
}

func TestBridgeStateToUpdateEvent(t *testing.T) {
	ev := BridgeStateToUpdateEvent(true).(domain.BridgeStateUpdateEvent)
	assert.True(t, ev.Value)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, ev.SensorId())
}
