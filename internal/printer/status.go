package printer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

// DefaultQueryDelay separates the two status queries; some firmware drops
// a command that arrives while it is still answering the previous one.
const DefaultQueryDelay = 100 * time.Millisecond

const (
	ErrConnectionTimeout = "Connection timeout"
	ErrNoResponse        = "No response from printer"
	ErrPaperUnavailable  = "Paper status not available"
)

// PartialStatusError means the printer answered the status query but not
// the paper query. The returned status is still usable.
type PartialStatusError struct {
	Status model.PrinterStatus
}

func (e *PartialStatusError) Error() string { return ErrPaperUnavailable }

type Monitor struct {
	Transport *Transport
	Delay     time.Duration
}

func NewMonitor(t *Transport) *Monitor {
	return &Monitor{Transport: t, Delay: DefaultQueryDelay}
}

// CheckStatus asks for the printer and paper status on one connection. The
// status is always filled in; the error says why it is incomplete.
func (m *Monitor) CheckStatus(ctx context.Context, host string, port int) (model.PrinterStatus, error) {
	var (
		buf [2]byte
		got int
	)
	err := m.Transport.Exchange(ctx, host, port, func(conn net.Conn) error {
		if err := write(conn, escpos.CmdTransmitPrinterStatus); err != nil {
			return err
		}
		if err := sleep(ctx, m.Delay); err != nil {
			return err
		}
		if err := write(conn, escpos.CmdTransmitPaperStatus); err != nil {
			return err
		}
		var err error
		got, err = readUpTo(conn, buf[:])
		return err
	})

	switch got {
	case 2:
		return escpos.DecodeStatus(buf[0], &buf[1]), nil
	case 1:
		status := escpos.DecodeStatus(buf[0], nil)
		status.Error = ErrPaperUnavailable
		return status, &PartialStatusError{Status: status}
	}

	status := model.PrinterStatus{Connected: false, Error: ErrNoResponse}
	var te *TransportError
	switch {
	case errors.As(err, &te) && te.Kind == KindTimeout:
		status.Error = ErrConnectionTimeout
	case errors.As(err, &te) && te.Op == "dial":
		status.Error = te.Error()
	}
	if err == nil {
		err = errors.New(ErrNoResponse)
	}
	return status, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
