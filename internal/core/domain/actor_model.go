package domain

import (
	"errors"

	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"
)

const (
	ACTOR_ID_ECU       = "ecu"
	ACTOR_ID_MQTT      = "mqtt"
	ACTOR_ID_PUBLISHER = "publisher"
)

// ErrECUUnavailable is returned when no metrics record has ever been fetched.
var ErrECUUnavailable = errors.New("ECU unavailable")

type GetSolarMetricsRequest struct {
	ActorRequestMixIn
}

type GetSolarMetricsResponse struct {
	ActorResponseMixIn
	Metrics *apsystems_ecu.SolarMetrics
	// Fresh is false when the record is served past its TTL
	Fresh bool
}

// SolarMetricsUpdatedEvent is published every time a fetch succeeds.
type SolarMetricsUpdatedEvent struct {
	Metrics apsystems_ecu.SolarMetrics
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
