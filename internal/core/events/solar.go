package events

import (
	. "github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"
)

func SolarMetricsToUpdateEvents(m *apsystems_ecu.SolarMetrics) []SensorUpdateEvent {
	if m == nil {
		return nil
	}
	var events []SensorUpdateEvent

	// Current Power
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_CURRENT_POWER,
		},
		Value: m.CurrentPowerWatt,
	})
	// Today Energy
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_TODAY_ENERGY,
		},
		Value:    m.TodayEnergyKWh,
		Decimals: 2,
	})
	// Lifetime Energy
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_LIFETIME_ENERGY,
		},
		Value:    m.LifetimeEnergyKWh,
		Decimals: 1,
	})
	// Inverter Count
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_SOLAR_INVERTER_COUNT,
		},
		Value: m.InverterCount,
	})

	return events
}

func BridgeStateToUpdateEvent(online bool) SensorUpdateEvent {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
