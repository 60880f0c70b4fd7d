package apsystems_ecu

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeECU accepts connections, records the request frame and answers with
// response. A nil response keeps the connection open without answering.
type fakeECU struct {
	listener net.Listener
	response []byte
	hold     chan struct{}

	mu       sync.Mutex
	requests [][]byte
}

func startFakeECU(t *testing.T, response []byte) *fakeECU {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ecu := &fakeECU{listener: l, response: response, hold: make(chan struct{})}
	t.Cleanup(func() {
		close(ecu.hold)
		l.Close()
	})
	go ecu.serve()
	return ecu
}

func (ecu *fakeECU) serve() {
	for {
		conn, err := ecu.listener.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			defer conn.Close()
			buf := make([]byte, 128)
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			ecu.mu.Lock()
			ecu.requests = append(ecu.requests, buf[:n])
			ecu.mu.Unlock()
			if ecu.response == nil {
				<-ecu.hold
				return
			}
			conn.Write(ecu.response)
		}(conn)
	}
}

func (ecu *fakeECU) hostPort(t *testing.T) (string, uint) {
	host, portStr, err := net.SplitHostPort(ecu.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)
	return host, uint(port)
}

func (ecu *fakeECU) lastRequest() []byte {
	ecu.mu.Lock()
	defer ecu.mu.Unlock()
	if len(ecu.requests) == 0 {
		return nil
	}
	return ecu.requests[len(ecu.requests)-1]
}

func TestFetchMetrics(t *testing.T) {
	require := require.New(t)

	ecu := startFakeECU(t, buildInfoResponse(86, 0x00000C80, 0x0BB8, 0x0640, 0x0003))
	host, port := ecu.hostPort(t)

	var recorded []string
	inst := &ECUInstrument{RecordTime: func(fnName string, _ time.Duration) {
		recorded = append(recorded, fnName)
	}}

	reader, err := CreateECUTCPReader(host, port, "", 2*time.Second, zap.NewNop(), inst)
	require.NoError(err)

	before := time.Now()
	m, err := reader.FetchMetrics()
	require.NoError(err)

	require.Equal(3000, m.CurrentPowerWatt)
	require.Equal(16.00, m.TodayEnergyKWh)
	require.Equal(320.0, m.LifetimeEnergyKWh)
	require.Equal(3, m.InverterCount)
	require.False(m.CapturedAt.Before(before))

	require.Equal("APS1100160001END", string(ecu.lastRequest()))
	require.Equal([]string{"FetchMetrics"}, recorded)
}

func TestFetchMetricsEmbedsECUId(t *testing.T) {
	ecu := startFakeECU(t, buildInfoResponse(MIN_RESPONSE_LENGTH, 1, 2, 3, 4))
	host, port := ecu.hostPort(t)

	reader, err := CreateECUTCPReader(host, port, "216200094701", 2*time.Second, nil, nil)
	require.NoError(t, err)

	_, err = reader.FetchMetrics()
	require.NoError(t, err)
	assert.Equal(t, "APS1100280001216200094701END", string(ecu.lastRequest()))
}

func TestFetchMetricsShortResponse(t *testing.T) {
	ecu := startFakeECU(t, []byte("APS11002400010000000000END"))
	host, port := ecu.hostPort(t)

	reader, err := CreateECUTCPReader(host, port, "", 2*time.Second, zap.NewNop(), nil)
	require.NoError(t, err)

	m, err := reader.FetchMetrics()
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrShortResponse))
}

func TestFetchMetricsConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	reader, err := CreateECUTCPReader("127.0.0.1", uint(addr.Port), "", 2*time.Second, zap.NewNop(), nil)
	require.NoError(t, err)

	m, err := reader.FetchMetrics()
	assert.Nil(t, m)
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, "dial", netErr.Op)
	assert.Equal(t, ERROR_KIND_NETWORK, ErrorKind(err))
}

func TestFetchMetricsReadTimeout(t *testing.T) {
	ecu := startFakeECU(t, nil)
	host, port := ecu.hostPort(t)

	reader, err := CreateECUTCPReader(host, port, "", 300*time.Millisecond, zap.NewNop(), nil)
	require.NoError(t, err)

	start := time.Now()
	m, err := reader.FetchMetrics()
	assert.Nil(t, m)
	assert.Equal(t, ERROR_KIND_TIMEOUT, ErrorKind(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCreateECUTCPReaderValidation(t *testing.T) {
	_, err := CreateECUTCPReader("", 8899, "", time.Second, nil, nil)
	assert.Error(t, err)
	_, err = CreateECUTCPReader("192.0.2.1", 8899, "", 0, nil, nil)
	assert.Error(t, err)
}

func TestTestECUReader(t *testing.T) {
	reader, err := CreateTestECUReader()
	require.NoError(t, err)

	m, err := reader.FetchMetrics()
	require.NoError(t, err)
	assert.Equal(t, 3000, m.CurrentPowerWatt)

	test := reader.(*TestECUReader)
	test.SetError(&NetworkError{Op: "dial", Err: errors.New("unreachable")})
	_, err = reader.FetchMetrics()
	assert.Error(t, err)
	assert.Equal(t, 2, test.Calls())
}
