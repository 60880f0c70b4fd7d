package apsystems_ecu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	COMMAND_PREFIX     = "APS11"
	COMMAND_CODE_INFO  = "0001"
	COMMAND_TERMINATOR = "END"

	READ_BUFFER_SIZE    = 4096
	MIN_RESPONSE_LENGTH = 50
)

// Field offsets inside the info response. Bytes outside these ranges are
// undocumented and left alone.
const (
	OFFSET_LIFETIME_ENERGY = 27 // uint32, 0.1 kWh
	OFFSET_CURRENT_POWER   = 33 // uint16, W
	OFFSET_TODAY_ENERGY    = 37 // uint16, 0.01 kWh
	OFFSET_INVERTER_COUNT  = 46 // uint16
)

// InfoCommand builds the info request frame: prefix, 4 digit total frame
// length, command code, ECU id and terminator. An empty id yields
// "APS1100160001END".
func InfoCommand(ecuId string) []byte {
	length := len(COMMAND_PREFIX) + 4 + len(COMMAND_CODE_INFO) + len(ecuId) + len(COMMAND_TERMINATOR)
	return []byte(fmt.Sprintf("%s%04d%s%s%s", COMMAND_PREFIX, length, COMMAND_CODE_INFO, ecuId, COMMAND_TERMINATOR))
}

// DecodeInfoResponse reads the known big-endian fields of an info response.
func DecodeInfoResponse(data []byte, capturedAt time.Time) (*SolarMetrics, error) {
	if len(data) < MIN_RESPONSE_LENGTH {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrShortResponse, len(data), MIN_RESPONSE_LENGTH)
	}

	lifetimeRaw := binary.BigEndian.Uint32(data[OFFSET_LIFETIME_ENERGY : OFFSET_LIFETIME_ENERGY+4])
	currentPower := binary.BigEndian.Uint16(data[OFFSET_CURRENT_POWER : OFFSET_CURRENT_POWER+2])
	todayRaw := binary.BigEndian.Uint16(data[OFFSET_TODAY_ENERGY : OFFSET_TODAY_ENERGY+2])
	inverterCount := binary.BigEndian.Uint16(data[OFFSET_INVERTER_COUNT : OFFSET_INVERTER_COUNT+2])

	return &SolarMetrics{
		CurrentPowerWatt:  int(currentPower),
		TodayEnergyKWh:    roundTo(float64(todayRaw)/100.0, 2),
		LifetimeEnergyKWh: roundTo(float64(lifetimeRaw)/10.0, 1),
		InverterCount:     int(inverterCount),
		CapturedAt:        capturedAt,
	}, nil
}

func roundTo(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(value*p) / p
}
