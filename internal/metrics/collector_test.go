package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorObserveFetch(t *testing.T) {
	assert := assert.New(t)
	c := NewCollector()

	capturedAt := time.Unix(1717243200, 0)
	c.ObserveFetch(&apsystems_ecu.SolarMetrics{
		CurrentPowerWatt:  3000,
		TodayEnergyKWh:    16.00,
		LifetimeEnergyKWh: 320.0,
		InverterCount:     3,
		CapturedAt:        capturedAt,
	}, nil)
	c.ObserveFetch(nil, &apsystems_ecu.NetworkError{Op: "dial", Err: errors.New("refused")})
	c.ObserveFetch(nil, apsystems_ecu.ErrShortResponse)
	c.ObserveCacheHit()
	c.ObserveCacheHit()

	assert.Equal(3000.0, testutil.ToFloat64(c.currentPowerW))
	assert.Equal(16.0, testutil.ToFloat64(c.todayEnergyKWh))
	assert.Equal(320.0, testutil.ToFloat64(c.lifetimeKWh))
	assert.Equal(3.0, testutil.ToFloat64(c.inverterCount))
	assert.Equal(float64(capturedAt.Unix()), testutil.ToFloat64(c.lastSuccess))
	assert.Equal(1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues(FETCH_RESULT_SUCCESS)))
	assert.Equal(1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues(apsystems_ecu.ERROR_KIND_NETWORK)))
	assert.Equal(1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues(apsystems_ecu.ERROR_KIND_SHORT_RESPONSE)))
	assert.Equal(2.0, testutil.ToFloat64(c.cacheHits))
}

func TestCollectorFailureKeepsLastReading(t *testing.T) {
	c := NewCollector()
	c.ObserveFetch(&apsystems_ecu.SolarMetrics{CurrentPowerWatt: 1500}, nil)
	c.ObserveFetch(nil, errors.New("boom"))

	assert.Equal(t, 1500.0, testutil.ToFloat64(c.currentPowerW))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchTotal.WithLabelValues(apsystems_ecu.ERROR_KIND_UNKNOWN)))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.Instrument().RecordTime("FetchMetrics", 120*time.Millisecond)
	c.ObserveFetch(&apsystems_ecu.SolarMetrics{CurrentPowerWatt: 42}, nil)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ecusolar_current_power_w 42")
	assert.Contains(t, string(body), "ecusolar_ecu_request_duration_seconds_count 1")
	assert.Contains(t, string(body), `ecusolar_fetch_total{result="success"} 1`)
}
