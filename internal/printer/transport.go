// Package printer talks to network thermal printers over raw TCP.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

const (
	DefaultPort    = 9100
	DefaultTimeout = 5 * time.Second
)

type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindConnectionRefused ErrorKind = "connection refused"
	KindWriteFailed       ErrorKind = "write failed"
	KindReadFailed        ErrorKind = "read failed"
	KindCanceled          ErrorKind = "canceled"
)

// TransportError is a failed socket operation against a printer.
type TransportError struct {
	Kind ErrorKind
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Unreachable reports whether no connection could be made at all.
func (e *TransportError) Unreachable() bool {
	return e.Op == "dial" && (e.Kind == KindTimeout || e.Kind == KindConnectionRefused)
}

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport opens one connection per operation. Every operation is bounded
// by Timeout and the connection is torn down when it ends or ctx is done.
type Transport struct {
	Timeout time.Duration
	Dialer  Dialer
}

func NewTransport(timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{Timeout: timeout, Dialer: &net.Dialer{}}
}

// Send writes data in full. Success only means the OS accepted the bytes.
func (t *Transport) Send(ctx context.Context, host string, port int, data []byte) error {
	return t.Exchange(ctx, host, port, func(conn net.Conn) error {
		return write(conn, data)
	})
}

// Query writes cmd and reads up to n response bytes. Bytes read before a
// failure are returned together with the error.
func (t *Transport) Query(ctx context.Context, host string, port int, cmd []byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	err := t.Exchange(ctx, host, port, func(conn net.Conn) error {
		if err := write(conn, cmd); err != nil {
			return err
		}
		var err error
		got, err = readUpTo(conn, buf)
		return err
	})
	return buf[:got], err
}

// Exchange runs fn on a fresh connection to host:port.
func (t *Transport) Exchange(ctx context.Context, host string, port int, fn func(conn net.Conn) error) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := t.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classify(ctx, "dial", addr, err, KindConnectionRefused)
	}
	defer conn.Close()

	// a stalled peer must not outlive the deadline
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := fn(conn); err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			te.Addr = addr
			if k := ctxKind(ctx); k != "" {
				te.Kind = k
			}
			return te
		}
		return classify(ctx, "exchange", addr, err, KindWriteFailed)
	}
	return nil
}

func write(conn net.Conn, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return classify(context.Background(), "write", conn.RemoteAddr().String(), err, KindWriteFailed)
		}
		data = data[n:]
	}
	return nil
}

// readUpTo fills buf until it is full, the peer closes, or an error occurs.
// A clean close is not an error.
func readUpTo(conn net.Conn, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := conn.Read(buf[got:])
		got += n
		if errors.Is(err, io.EOF) {
			return got, nil
		}
		if err != nil {
			return got, classify(context.Background(), "read", conn.RemoteAddr().String(), err, KindReadFailed)
		}
	}
	return got, nil
}

func classify(ctx context.Context, op, addr string, err error, fallback ErrorKind) *TransportError {
	kind := fallback
	var ne net.Error
	switch {
	case ctxKind(ctx) != "":
		kind = ctxKind(ctx)
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindConnectionRefused
	}
	return &TransportError{Kind: kind, Op: op, Addr: addr, Err: err}
}

func ctxKind(ctx context.Context) ErrorKind {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return KindTimeout
	case context.Canceled:
		return KindCanceled
	}
	return ""
}
