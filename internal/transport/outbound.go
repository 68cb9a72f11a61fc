// Package transport implements the Shuttle Transport (C3): outbound
// command sends over a fresh per-command TCP connection, and the inbound
// listener that receives a shuttle's asynchronous status stream.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/conduitio/bwlimit"

	"go.corp.example.com/shuttlegateway/pkg/shuttleproto"
)

// SendBandwidthLimit bounds outbound command writes, in bytes per second, so
// a retry storm can't flood a shuttle's embedded TCP stack (spec §11 domain
// stack note). It is deliberately generous: a single line is a handful of
// bytes.
const SendBandwidthLimit = bwlimit.Byte(65536)

// FailureClass identifies why an outbound send failed, per spec §4.3's
// failure-to-error-code mapping.
type FailureClass string

const (
	FailureTimeout           FailureClass = "TCP_TIMEOUT_SEND"
	FailureConnectionRefused FailureClass = "CONNECTION_REFUSED"
	FailureNetError          FailureClass = "NET_ERROR"
	FailureUnknown           FailureClass = "UNKNOWN_SEND_ERROR"
)

// SendError wraps a failed outbound send with the error code that should be
// recorded against the shuttle's state (spec §4.3, §4.2 ERROR transition).
type SendError struct {
	Class     FailureClass
	ErrorCode string
	Cause     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("transport: send failed (%s): %s", e.Class, e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

// Sender opens a fresh TCP connection per command and writes the wire line.
type Sender struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// NewSender builds a Sender from the core tunables.
func NewSender(connectTimeout, writeTimeout time.Duration) *Sender {
	return &Sender{ConnectTimeout: connectTimeout, WriteTimeout: writeTimeout}
}

// Send dials (host, port), writes "<COMMAND>[-<NNN>]\n" (params zero-padded
// to three digits), waits for the write to drain, and closes the
// connection. It returns a *SendError describing the failure class on any
// error, so callers can drive the shuttle's status to ERROR per §4.2.
func (s *Sender) Send(ctx context.Context, host string, port int, cmd shuttleproto.Command, params string) *SendError {
	line := formatLine(cmd, params)

	dialer := net.Dialer{Timeout: s.ConnectTimeout}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classifyDialError(err)
	}
	defer conn.Close()

	limited := bwlimit.NewConn(conn, SendBandwidthLimit, bwlimit.Byte(0))

	if err := limited.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
		return &SendError{Class: FailureUnknown, ErrorCode: string(FailureUnknown), Cause: err}
	}
	if _, err := limited.Write([]byte(line)); err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// formatLine builds the wire line for cmd, zero-padding params to three
// digits for FIFO/FILO per spec §4.3.
func formatLine(cmd shuttleproto.Command, params string) string {
	if params == "" {
		return string(cmd) + "\n"
	}
	if shuttleproto.RequiresNumericParam(cmd) {
		return fmt.Sprintf("%s-%03s\n", cmd, params)
	}
	return fmt.Sprintf("%s-%s\n", cmd, params)
}

func classifyDialError(err error) *SendError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SendError{Class: FailureTimeout, ErrorCode: string(FailureTimeout), Cause: err}
	}
	if strings.Contains(err.Error(), "connection refused") {
		return &SendError{Class: FailureConnectionRefused, ErrorCode: string(FailureConnectionRefused), Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SendError{Class: FailureNetError, ErrorCode: netErrorCode(opErr), Cause: err}
	}
	return &SendError{Class: FailureUnknown, ErrorCode: string(FailureUnknown), Cause: err}
}

func classifyWriteError(err error) *SendError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &SendError{Class: FailureTimeout, ErrorCode: string(FailureTimeout), Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &SendError{Class: FailureNetError, ErrorCode: netErrorCode(opErr), Cause: err}
	}
	return &SendError{Class: FailureUnknown, ErrorCode: string(FailureUnknown), Cause: err}
}

// netErrorCode renders a NET_ERROR_<errno>-shaped code from an *OpError's
// underlying syscall errno when available, falling back to its Err string.
func netErrorCode(opErr *net.OpError) string {
	var errno syscall.Errno
	if errors.As(opErr.Err, &errno) {
		return fmt.Sprintf("NET_ERROR_%d", int(errno))
	}
	return fmt.Sprintf("NET_ERROR_%s", sanitizeErrnoText(opErr.Err.Error()))
}

func sanitizeErrnoText(s string) string {
	s = strings.ToUpper(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	return strings.Trim(s, "_")
}

// IsRetriable reports whether a send failure is one of the classes the
// retry helper (internal/dispatch) should retry on: timeout, connection
// refused, or a generic OS/network error. FailureUnknown is not retried.
func IsRetriable(class FailureClass) bool {
	switch class {
	case FailureTimeout, FailureConnectionRefused, FailureNetError:
		return true
	default:
		return false
	}
}
