package util

import (
	"github.com/berfenger/ecusolar/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		ECU: config.ECUConfig{
			Host:           "127.0.0.1",
			Port:           8899,
			TimeoutSeconds: 2,
		},
		Cache: config.CacheConfig{
			TTLSeconds: 30,
		},
		MQTT: config.MQTTConfig{
			Host:                   "localhost",
			Port:                   1883,
			BaseTopic:              "ecusolar",
			HADiscoveryEnable:      true,
			HADiscoveryTopic:       "homeassistant",
			PublishIntervalSeconds: 60,
		},
		Port: 8080,
	}
}
