package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/ecusolar/internal/adapter/actor"
	"github.com/berfenger/ecusolar/internal/config"
	"github.com/berfenger/ecusolar/internal/core/actor"
	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/internal/core/service"
	"github.com/berfenger/ecusolar/internal/metrics"
	"github.com/berfenger/ecusolar/internal/server"
	"github.com/berfenger/ecusolar/internal/util/actorutil"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(servers []*http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown with error: %v", err)
		}
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	collector := metrics.NewCollector()
	eventStream := eventstream.NewEventStream()

	reader, err := apsystems_ecu.CreateECUTCPReader(cfg.ECU.Host, cfg.ECU.Port, cfg.ECU.Id,
		cfg.ECU.Timeout(), logger, collector.Instrument())
	if err != nil {
		panic(err)
	}

	// the cache lives outside the actor so a restart keeps the last record
	cache := service.NewMetricsCache(cfg.Cache.TTL(), nil)
	ecuProps := pactor.PropsFromProducer(func() pactor.Actor {
		return adactor.NewECUActor(reader, cache, collector, eventStream, cfg.ECU.FetchTimeout(), logger)
	})
	ecuPID, err := ctx.SpawnNamed(ecuProps, domain.ACTOR_ID_ECU)
	if err != nil {
		panic(err)
	}

	var publisherPID *pactor.PID
	if cfg.MQTT.Enable {
		address := net.JoinHostPort(cfg.ECU.Host, strconv.FormatUint(uint64(cfg.ECU.Port), 10))
		ecuDevice := domain.ECUDevice(cfg.ECU.Id, address)
		publisherProps := pactor.PropsFromProducer(func() pactor.Actor {
			return actor.NewPublisherActor(cfg, ecuPID, ecuDevice, eventStream, mqttActorProvider(cfg, logger), logger)
		})
		publisherPID, err = ctx.SpawnNamed(publisherProps, domain.ACTOR_ID_PUBLISHER)
		if err != nil {
			panic(err)
		}
	}

	solar := adactor.NewECUService(ctx, ecuPID, cfg.ECU.FetchTimeout()+2*time.Second)
	servers := []*http.Server{server.NewServer(*cfg, solar, logger)}
	if cfg.Metrics.Port > 0 {
		servers = append(servers, server.NewMetricsServer(cfg.Metrics.Port, collector.Handler()))
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(servers, done)

	for _, srv := range servers[1:] {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(err))
			}
		}(srv)
	}

	logger.Info("listening", zap.String("addr", servers[0].Addr), zap.String("ecu", cfg.ECU.Host))
	err = servers[0].ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	if publisherPID != nil {
		ctx.Stop(publisherPID)
	}
	ctx.Stop(ecuPID)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => ECUSOLAR_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ECUSOLAR_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("ecusolar")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

// setConfigDefaults also registers every key so AutomaticEnv can bind it
// during Unmarshal.
func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("ecu.host", "")
	viper.SetDefault("ecu.port", 8899)
	viper.SetDefault("ecu.id", "")
	viper.SetDefault("ecu.timeout_seconds", 10)
	viper.SetDefault("cache.ttl_seconds", 30)
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "ecusolar")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.publish_interval_seconds", 60)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
