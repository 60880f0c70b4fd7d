package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	ECU      ECUConfig     `mapstructure:"ecu"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
	Port     uint          `mapstructure:"port"`
	HttpLog  bool          `mapstructure:"http_log"`
}

type ECUConfig struct {
	Host           string
	Port           uint
	Id             string
	TimeoutSeconds uint `mapstructure:"timeout_seconds"`
}

type CacheConfig struct {
	TTLSeconds uint `mapstructure:"ttl_seconds"`
}

type MetricsConfig struct {
	Port uint
}

type MQTTConfig struct {
	Enable                 bool
	Host                   string
	Port                   int
	Username               string
	Password               string
	BaseTopic              string `mapstructure:"base_topic"`
	HADiscoveryEnable      bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic       string `mapstructure:"ha_discovery_topic"`
	PublishIntervalSeconds uint   `mapstructure:"publish_interval_seconds"`
}

func (c ECUConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FetchTimeout bounds a whole fetch, leaving the socket timeout room to fire
// first.
func (c ECUConfig) FetchTimeout() time.Duration {
	return c.Timeout() + time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c MQTTConfig) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalSeconds) * time.Second
}

// Validate checks bounds and normalizes MQTT topics in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ECU.Host) == "" {
		return errors.New("config param ecu.host is required")
	}
	if c.ECU.Port == 0 || c.ECU.Port > 65535 {
		return errors.New("config param ecu.port should be in 1..65535")
	}
	if c.ECU.TimeoutSeconds < 1 {
		return errors.New("config param ecu.timeout_seconds should be >= 1")
	}
	if c.Cache.TTLSeconds < 1 {
		return errors.New("config param cache.ttl_seconds should be >= 1")
	}
	if c.Port == 0 || c.Port > 65535 {
		return errors.New("config param port should be in 1..65535")
	}
	if c.Metrics.Port > 65535 {
		return errors.New("config param metrics.port should be in 0..65535")
	}
	if c.Metrics.Port != 0 && c.Metrics.Port == c.Port {
		return errors.New("config param metrics.port must differ from port")
	}

	if !c.MQTT.Enable {
		return nil
	}
	if c.MQTT.Host == "" {
		return errors.New("config param mqtt.host is required when mqtt is enabled")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return errors.New("config param mqtt.port should be in 1..65535")
	}
	if c.MQTT.PublishIntervalSeconds < c.Cache.TTLSeconds {
		return fmt.Errorf("config param mqtt.publish_interval_seconds should be >= cache.ttl_seconds (%d)", c.Cache.TTLSeconds)
	}

	baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.BaseTopic = baseTopic

	hadTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.HADiscoveryTopic = hadTopic
	return nil
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(topic string) (string, error) {
	lower := strings.ToLower(topic)
	if !topicRegexp.MatchString(lower) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lower, nil
}

// ParseLogLevel maps a config string to a zap level, defaulting to info.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
