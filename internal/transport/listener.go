package transport

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// LineHandler processes one inbound line from a shuttle. It returns nothing,
// so a handler logs its own failures; it runs synchronously in the read
// loop, before the line's MRCD ack is written.
type LineHandler func(ctx context.Context, shuttleID, line string)

// ShuttleResolver maps a peer IP address to a configured shuttle_id. It
// returns ok=false for unrecognized peers, which the listener closes
// immediately (spec §4.3).
type ShuttleResolver func(peerIP string) (shuttleID string, ok bool)

// ConnGauge tracks the live inbound connection count. Both methods must be
// safe for concurrent use.
type ConnGauge interface {
	Inc()
	Dec()
}

type noopGauge struct{}

func (noopGauge) Inc() {}
func (noopGauge) Dec() {}

// TimeoutHandler is invoked when a connection goes idle past
// ShuttleTimeoutSeconds with no inbound line.
type TimeoutHandler func(ctx context.Context, shuttleID string)

// Listener is the single TCP acceptor for the inbound shuttle status
// stream (spec §4.3).
type Listener struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	Resolve        ShuttleResolver
	OnLine         LineHandler
	OnIdleTimeout  TimeoutHandler
	Gauge          ConnGauge
	Logger         *slog.Logger
}

// NewListener builds a Listener with a no-op gauge if none is supplied by
// the caller via the Gauge field afterward.
func NewListener(port int, readTimeout, writeTimeout, idleTimeout time.Duration, resolve ShuttleResolver, onLine LineHandler, onIdleTimeout TimeoutHandler, logger *slog.Logger) *Listener {
	return &Listener{
		Port:          port,
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
		IdleTimeout:   idleTimeout,
		Resolve:       resolve,
		OnLine:        onLine,
		OnIdleTimeout: onIdleTimeout,
		Gauge:         noopGauge{},
		Logger:        logger,
	}
}

// Run accepts connections until ctx is cancelled or the listener fails to
// bind. Each accepted connection is handled in its own goroutine managed by
// an errgroup, mirroring the teacher's bidirectional-forwarding idiom.
func (l *Listener) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(l.Port)))
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return g.Wait()
			default:
				l.Logger.Error("accept failed", "error", err)
				continue
			}
		}
		g.Go(func() error {
			l.handleConn(gctx, conn)
			return nil
		})
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peerIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		peerIP = conn.RemoteAddr().String()
	}

	shuttleID, ok := l.Resolve(peerIP)
	if !ok {
		l.Logger.Warn("rejecting connection from unrecognized peer", "peer", peerIP)
		return
	}

	l.Gauge.Inc()
	defer l.Gauge.Dec()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// lastSeen tracks the last successful read, independent of the
	// per-read deadline below; a connection is only idle-timed-out once
	// the gap since lastSeen itself exceeds IdleTimeout, matching
	// spec §4.3's inactivity threshold rather than any single read's
	// deadline. ReadTimeout is typically shorter than IdleTimeout, so a
	// read timing out is expected and retried, not fatal.
	reader := bufio.NewReader(conn)
	lastSeen := time.Now()
	for {
		conn.SetReadDeadline(time.Now().Add(l.ReadTimeout))
		raw, err := reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && time.Since(lastSeen) < l.IdleTimeout {
				continue
			}
			if errors.As(err, &netErr) && netErr.Timeout() && l.OnIdleTimeout != nil {
				l.OnIdleTimeout(ctx, shuttleID)
			}
			return
		}
		lastSeen = time.Now()
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			continue
		}

		if l.OnLine != nil {
			l.OnLine(ctx, shuttleID, line)
		}

		if line != "MRCD" {
			conn.SetWriteDeadline(time.Now().Add(l.WriteTimeout))
			if _, err := conn.Write([]byte("MRCD\n")); err != nil {
				l.Logger.Warn("failed to write ack", "shuttle", shuttleID, "error", err)
				return
			}
		}
	}
}
