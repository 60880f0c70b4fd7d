package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/berfenger/ecusolar/internal/core/domain"
	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	TIMESTAMP_LAYOUT = "2006-01-02T15:04:05.000000Z07:00"

	HEADER_ALLOW_ORIGIN  = "Access-Control-Allow-Origin"
	HEADER_ALLOW_METHODS = "Access-Control-Allow-Methods"
	HEADER_ALLOW_HEADERS = "Access-Control-Allow-Headers"
)

// energy always carries a fractional part on the wire, so 320 is written as 320.0.
type energy float64

func (e energy) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(e), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return []byte(s), nil
}

type solarResponse struct {
	CurrentPowerWatt  int    `json:"current_power_w"`
	TodayEnergyKWh    energy `json:"today_kwh"`
	LifetimeEnergyKWh energy `json:"lifetime_kwh"`
	InverterCount     int    `json:"inverter_count"`
	Timestamp         string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newSolarResponse(m *apsystems_ecu.SolarMetrics) solarResponse {
	return solarResponse{
		CurrentPowerWatt:  m.CurrentPowerWatt,
		TodayEnergyKWh:    energy(m.TodayEnergyKWh),
		LifetimeEnergyKWh: energy(m.LifetimeEnergyKWh),
		InverterCount:     m.InverterCount,
		Timestamp:         m.CapturedAt.Local().Format(TIMESTAMP_LAYOUT),
	}
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = notFoundErrorHandler(e)
	e.Pre(corsPreflight, exactPath)
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/api/solar", s.SolarHandler)
	e.GET("/solar", s.SolarHandler)
	e.GET("/health", s.HealthCheckHandler)

	return e
}

func RegisterMetricsRoutes(metrics http.Handler) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(metrics))
	return e
}

func (s *Server) SolarHandler(c echo.Context) error {
	c.Response().Header().Set(HEADER_ALLOW_ORIGIN, "*")

	metrics, err := s.solar.GetMetrics(c.Request().Context())
	if err != nil {
		if !errors.Is(err, domain.ErrECUUnavailable) {
			s.logger.Warn("solar metrics request failed", zap.Error(err))
		}
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: domain.ErrECUUnavailable.Error()})
	}
	return c.JSON(http.StatusOK, newSolarResponse(metrics))
}

// HealthCheckHandler reports liveness only; it never queries the ECU.
func (s *Server) HealthCheckHandler(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// corsPreflight answers OPTIONS on any path, routed or not.
func corsPreflight(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method != http.MethodOptions {
			return next(c)
		}
		h := c.Response().Header()
		h.Set(HEADER_ALLOW_ORIGIN, "*")
		h.Set(HEADER_ALLOW_METHODS, "GET, OPTIONS")
		h.Set(HEADER_ALLOW_HEADERS, "Content-Type")
		return c.NoContent(http.StatusOK)
	}
}

// exactPath matches routes against the raw request target, so a query string
// makes a known path unknown.
func exactPath(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if u := c.Request().URL; u.RawQuery != "" || u.ForceQuery {
			return echo.ErrNotFound
		}
		return next(c)
	}
}

// notFoundErrorHandler turns unknown paths and unsupported methods into a
// bare 404.
func notFoundErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if errors.As(err, &he) && (he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed) {
			if c.Response().Committed {
				return
			}
			c.Response().Header().Del(echo.HeaderAllow)
			if err := c.NoContent(http.StatusNotFound); err != nil {
				e.Logger.Error(err)
			}
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
