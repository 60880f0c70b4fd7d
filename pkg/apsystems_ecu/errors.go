package apsystems_ecu

import (
	"errors"
	"fmt"
	"net"
)

const (
	ERROR_KIND_NETWORK        = "network"
	ERROR_KIND_SHORT_RESPONSE = "short_response"
	ERROR_KIND_TIMEOUT        = "timeout"
	ERROR_KIND_UNKNOWN        = "unknown"
)

// ErrShortResponse is returned when the ECU answers with fewer bytes than
// the info layout needs.
var ErrShortResponse = errors.New("ecu response too short")

// NetworkError wraps any socket failure talking to the ECU.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ecu %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a fetch error for logs and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrShortResponse) {
		return ERROR_KIND_SHORT_RESPONSE
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		// covers socket deadlines and context.DeadlineExceeded
		var timeoutErr net.Error
		if errors.As(netErr.Err, &timeoutErr) && timeoutErr.Timeout() {
			return ERROR_KIND_TIMEOUT
		}
		return ERROR_KIND_NETWORK
	}
	return ERROR_KIND_UNKNOWN
}
