package apsystems_ecu

import (
	"time"

	"go.uber.org/zap"
)

type ECUInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func RecordTimer(name string, instrument []ECUInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ECUInstrument {
	if logger == nil {
		return nil
	}
	return &ECUInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("ecu request", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
