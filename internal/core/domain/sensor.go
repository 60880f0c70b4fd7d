package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE          = "bridge"
	SENSOR_ID_SOLAR_CURRENT_POWER   = "solar_current_power"
	SENSOR_ID_SOLAR_TODAY_ENERGY    = "solar_today_energy"
	SENSOR_ID_SOLAR_LIFETIME_ENERGY = "solar_lifetime_energy"
	SENSOR_ID_SOLAR_INVERTER_COUNT  = "solar_inverter_count"
	STATE_CLASS_MEASUREMENT         = "measurement"
	STATE_CLASS_TOTAL_INCREASING    = "total_increasing"
	DEVICE_CLASS_ENERGY             = "energy"
	DEVICE_CLASS_POWER              = "power"
	DEVICE_CLASS_CONNECTIVITY       = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC         = "diagnostic"
	SENSOR_TYPE_SENSOR              = "sensor"
	SENSOR_TYPE_BINARY              = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("ecusolar_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "ecusolar",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("ecusolar %s", md5HashShort(baseTopic)),
	}
}

// ECUDevice identifies the polled ECU. The ECU id is hashed when known,
// otherwise the network address is.
func ECUDevice(ecuId, address string) Device {
	key := ecuId
	if key == "" {
		key = address
	}
	return Device{
		Id:           fmt.Sprintf("aps_ecu_%s", md5HashShort(key)),
		Manufacturer: "APsystems",
		Model:        "ECU",
		Name:         fmt.Sprintf("APsystems ECU %s", md5HashShort(key)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func SolarSensors(ecuDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Current Power
	sensors = append(sensors, GenericSensor{
		Device:            ecuDevice,
		Id:                SENSOR_ID_SOLAR_CURRENT_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(ecuDevice.Id, SENSOR_ID_SOLAR_CURRENT_POWER),
	})

	// Today Energy
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(ecuDevice),
		Id:                SENSOR_ID_SOLAR_TODAY_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar energy today",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(ecuDevice.Id, SENSOR_ID_SOLAR_TODAY_ENERGY),
	})

	// Lifetime Energy
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(ecuDevice),
		Id:                SENSOR_ID_SOLAR_LIFETIME_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar energy lifetime",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(ecuDevice.Id, SENSOR_ID_SOLAR_LIFETIME_ENERGY),
	})

	// Inverter Count
	sensors = append(sensors, GenericSensor{
		Device:         IdDevice(ecuDevice),
		Id:             SENSOR_ID_SOLAR_INVERTER_COUNT,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Reporting inverters",
		StateClass:     STATE_CLASS_MEASUREMENT,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:counter",
		UniqueId:       uniqueId(ecuDevice.Id, SENSOR_ID_SOLAR_INVERTER_COUNT),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
