package printer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
)

// startPrinter runs handle for every connection on a loopback listener.
// done is closed when the test ends so hanging handlers can return.
func startPrinter(t *testing.T, handle func(conn net.Conn, done <-chan struct{})) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn, done)
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func hang(conn net.Conn, done <-chan struct{}) {
	io.Copy(io.Discard, io.LimitReader(conn, 6))
	<-done
}

func TestTransport_Send(t *testing.T) {
	received := make(chan []byte, 1)
	host, port := startPrinter(t, func(conn net.Conn, _ <-chan struct{}) {
		data, _ := io.ReadAll(conn)
		received <- data
	})

	payload := bytes.Repeat([]byte("receipt line\n"), 5000)
	err := NewTransport(2*time.Second).Send(context.Background(), host, port, payload)
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received the job")
	}
}

func TestTransport_SendConnectionRefused(t *testing.T) {
	err := NewTransport(time.Second).Send(context.Background(), "127.0.0.1", closedPort(t), []byte("x"))

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, KindConnectionRefused, te.Kind)
	assert.True(t, te.Unreachable())
}

func TestTransport_Query(t *testing.T) {
	host, port := startPrinter(t, func(conn net.Conn, _ <-chan struct{}) {
		cmd := make([]byte, 3)
		if _, err := io.ReadFull(conn, cmd); err != nil {
			return
		}
		if bytes.Equal(cmd, escpos.CmdTransmitPrinterStatus) {
			conn.Write([]byte{0x16})
		}
	})

	resp, err := NewTransport(time.Second).Query(context.Background(), host, port, escpos.CmdTransmitPrinterStatus, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x16}, resp)
}

func TestTransport_QueryTimeout(t *testing.T) {
	host, port := startPrinter(t, hang)

	start := time.Now()
	_, err := NewTransport(200*time.Millisecond).Query(context.Background(), host, port, escpos.CmdTransmitPrinterStatus, 1)

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, KindTimeout, te.Kind)
	assert.False(t, te.Unreachable())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTransport_Canceled(t *testing.T) {
	host, port := startPrinter(t, hang)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewTransport(5*time.Second).Query(ctx, host, port, []byte{0x00}, 1)

	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, KindCanceled, te.Kind)
}

// statusPrinter answers each of the two queries with the given bytes; a
// negative value means close the connection instead of answering.
func statusPrinter(statusByte, paperByte int) func(net.Conn, <-chan struct{}) {
	return func(conn net.Conn, done <-chan struct{}) {
		cmd := make([]byte, 3)
		if _, err := io.ReadFull(conn, cmd); err != nil || !bytes.Equal(cmd, escpos.CmdTransmitPrinterStatus) {
			return
		}
		if statusByte >= 0 {
			conn.Write([]byte{byte(statusByte)})
		}
		if _, err := io.ReadFull(conn, cmd); err != nil || !bytes.Equal(cmd, escpos.CmdTransmitPaperStatus) {
			return
		}
		if paperByte >= 0 {
			conn.Write([]byte{byte(paperByte)})
		}
	}
}

func newTestMonitor(timeout time.Duration) *Monitor {
	m := NewMonitor(NewTransport(timeout))
	m.Delay = 10 * time.Millisecond
	return m
}

func TestCheckStatus_Healthy(t *testing.T) {
	host, port := startPrinter(t, statusPrinter(0x00, 0x00))

	status, err := newTestMonitor(time.Second).CheckStatus(context.Background(), host, port)
	require.NoError(t, err)

	assert.True(t, status.Connected)
	assert.True(t, *status.Online)
	assert.True(t, *status.CoverClosed)
	assert.True(t, *status.PaperPresent)
	assert.False(t, *status.PaperNearEnd)
	assert.True(t, status.Ready())
	assert.Empty(t, status.Error)
}

func TestCheckStatus_OfflineCoverOpen(t *testing.T) {
	host, port := startPrinter(t, statusPrinter(0x28, 0x0C))

	status, err := newTestMonitor(time.Second).CheckStatus(context.Background(), host, port)
	require.NoError(t, err)

	assert.False(t, *status.Online)
	assert.False(t, *status.CoverClosed)
	assert.True(t, *status.PaperNearEnd)
	assert.Equal(t, byte(0x28), *status.RawStatusByte)
	assert.Equal(t, byte(0x0C), *status.RawPaperByte)
	assert.False(t, status.Ready())
}

func TestCheckStatus_PaperNotAnswered(t *testing.T) {
	host, port := startPrinter(t, statusPrinter(0x12, -1))

	status, err := newTestMonitor(time.Second).CheckStatus(context.Background(), host, port)

	var partial *PartialStatusError
	require.True(t, errors.As(err, &partial), "got %v", err)
	assert.True(t, status.Connected)
	assert.True(t, *status.Online)
	assert.Nil(t, status.PaperPresent)
	assert.Nil(t, status.PaperNearEnd)
	assert.Equal(t, ErrPaperUnavailable, status.Error)
}

func TestCheckStatus_NoResponse(t *testing.T) {
	host, port := startPrinter(t, statusPrinter(-1, -1))

	status, err := newTestMonitor(time.Second).CheckStatus(context.Background(), host, port)

	assert.Error(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, ErrNoResponse, status.Error)
}

func TestCheckStatus_Timeout(t *testing.T) {
	host, port := startPrinter(t, hang)

	status, err := newTestMonitor(200*time.Millisecond).CheckStatus(context.Background(), host, port)

	assert.Error(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, ErrConnectionTimeout, status.Error)
}

func TestCheckStatus_Unreachable(t *testing.T) {
	status, err := newTestMonitor(time.Second).CheckStatus(context.Background(), "127.0.0.1", closedPort(t))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.False(t, status.Connected)
	assert.Contains(t, status.Error, string(KindConnectionRefused))
}

func TestProbeAndDiscover(t *testing.T) {
	host, port := startPrinter(t, func(net.Conn, <-chan struct{}) {})
	ctx := context.Background()

	assert.True(t, Probe(ctx, host, port, DefaultProbeTimeout))
	assert.False(t, Probe(ctx, host, closedPort(t), DefaultProbeTimeout))

	found := Discover(ctx, "127.0.0", port, 100*time.Millisecond)
	assert.Contains(t, found, "127.0.0.1")
}

func TestSubnetOf(t *testing.T) {
	subnet, err := SubnetOf("192.168.1.57")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1", subnet)

	_, err = SubnetOf("fe80::1")
	assert.Error(t, err)

	assert.Equal(t, 254, lastOctet("10.0.0."+strconv.Itoa(254)))
}
