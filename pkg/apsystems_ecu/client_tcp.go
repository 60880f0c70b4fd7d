package apsystems_ecu

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

type TCPECUReader struct {
	address    string
	command    []byte
	timeout    time.Duration
	instrument []ECUInstrument
	logger     *zap.Logger
}

// CreateECUTCPReader returns a reader that opens a fresh connection per
// fetch. timeout bounds the whole connect/send/receive cycle.
func CreateECUTCPReader(host string, port uint, ecuId string, timeout time.Duration,
	logger *zap.Logger, instrumentation *ECUInstrument) (ECUReader, error) {
	if host == "" {
		return nil, errors.New("ecu host is empty")
	}
	if timeout <= 0 {
		return nil, errors.New("ecu timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("target", "ecu"), zap.String("host", host))

	// instrumentation
	var inst []ECUInstrument
	logInst := traceLoggerInstrumentation(logger)
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	return &TCPECUReader{
		address:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		command:    InfoCommand(ecuId),
		timeout:    timeout,
		instrument: inst,
		logger:     logger,
	}, nil
}

func (reader *TCPECUReader) FetchMetrics() (*SolarMetrics, error) {
	defer RecordTimer("FetchMetrics", reader.instrument)()

	deadline := time.Now().Add(reader.timeout)
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial("tcp", reader.address)
	if err != nil {
		return nil, &NetworkError{Op: "dial", Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, &NetworkError{Op: "deadline", Err: err}
	}
	if _, err := conn.Write(reader.command); err != nil {
		return nil, &NetworkError{Op: "write", Err: err}
	}

	// a single read: the ECU answers with one frame
	buf := make([]byte, READ_BUFFER_SIZE)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &NetworkError{Op: "read", Err: err}
	}
	reader.logger.Debug("ecu response received", zap.Int("bytes", n))

	return DecodeInfoResponse(buf[:n], time.Now())
}
