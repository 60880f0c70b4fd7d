package metrics

import (
	"net/http"
	"time"

	"github.com/berfenger/ecusolar/internal/core/port"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const FETCH_RESULT_SUCCESS = "success"

// Collector exports the last good ECU reading and fetch outcomes.
type Collector struct {
	currentPowerW   prometheus.Gauge
	todayEnergyKWh  prometheus.Gauge
	lifetimeKWh     prometheus.Gauge
	inverterCount   prometheus.Gauge
	lastSuccess     prometheus.Gauge
	fetchTotal      *prometheus.CounterVec
	cacheHits       prometheus.Counter
	requestDuration prometheus.Histogram

	registry *prometheus.Registry
}

func NewCollector() *Collector {
	c := &Collector{
		currentPowerW: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecusolar_current_power_w",
			Help: "Current solar production in watts",
		}),
		todayEnergyKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecusolar_today_energy_kwh",
			Help: "Energy produced today (kWh)",
		}),
		lifetimeKWh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecusolar_lifetime_energy_kwh",
			Help: "Energy produced since commissioning (kWh)",
		}),
		inverterCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecusolar_inverter_count",
			Help: "Number of inverters reported by the ECU",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecusolar_last_success_timestamp_seconds",
			Help: "Unix time of the last successful ECU fetch",
		}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecusolar_fetch_total",
			Help: "ECU fetches by result",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecusolar_cache_hits_total",
			Help: "Requests served from a fresh cache",
		}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecusolar_ecu_request_duration_seconds",
			Help:    "Duration of ECU TCP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(c)
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.currentPowerW.Describe(ch)
	c.todayEnergyKWh.Describe(ch)
	c.lifetimeKWh.Describe(ch)
	c.inverterCount.Describe(ch)
	c.lastSuccess.Describe(ch)
	c.fetchTotal.Describe(ch)
	c.cacheHits.Describe(ch)
	c.requestDuration.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.currentPowerW.Collect(ch)
	c.todayEnergyKWh.Collect(ch)
	c.lifetimeKWh.Collect(ch)
	c.inverterCount.Collect(ch)
	c.lastSuccess.Collect(ch)
	c.fetchTotal.Collect(ch)
	c.cacheHits.Collect(ch)
	c.requestDuration.Collect(ch)
}

func (c *Collector) ObserveFetch(metrics *apsystems_ecu.SolarMetrics, err error) {
	if err != nil {
		c.fetchTotal.WithLabelValues(apsystems_ecu.ErrorKind(err)).Inc()
		return
	}
	c.fetchTotal.WithLabelValues(FETCH_RESULT_SUCCESS).Inc()
	if metrics == nil {
		return
	}
	c.currentPowerW.Set(float64(metrics.CurrentPowerWatt))
	c.todayEnergyKWh.Set(metrics.TodayEnergyKWh)
	c.lifetimeKWh.Set(metrics.LifetimeEnergyKWh)
	c.inverterCount.Set(float64(metrics.InverterCount))
	c.lastSuccess.Set(float64(metrics.CapturedAt.Unix()))
}

func (c *Collector) ObserveCacheHit() {
	c.cacheHits.Inc()
}

// Instrument returns the hook that feeds the request duration histogram.
func (c *Collector) Instrument() *apsystems_ecu.ECUInstrument {
	return &apsystems_ecu.ECUInstrument{
		RecordTime: func(_ string, d time.Duration) {
			c.requestDuration.Observe(d.Seconds())
		},
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ensure interface compliance
var _ port.FetchObserver = (*Collector)(nil)
var _ prometheus.Collector = (*Collector)(nil)
