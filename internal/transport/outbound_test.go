package transport

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"go.corp.example.com/shuttlegateway/pkg/shuttleproto"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		cmd    shuttleproto.Command
		params string
		want   string
	}{
		{shuttleproto.CommandHome, "", "HOME\n"},
		{shuttleproto.CommandFIFO, "5", "FIFO-005\n"},
		{shuttleproto.CommandFILO, "42", "FILO-042\n"},
		{shuttleproto.CommandFIFO, "123", "FIFO-123\n"},
	}
	for _, tt := range tests {
		if got := formatLine(tt.cmd, tt.params); got != tt.want {
			t.Errorf("formatLine(%s, %q) = %q, want %q", tt.cmd, tt.params, got, tt.want)
		}
	}
}

func TestSenderSendSucceeds(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test listener: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad test port %q: %v", portStr, err)
	}

	s := NewSender(2*time.Second, 2*time.Second)
	if sendErr := s.Send(context.Background(), host, port, shuttleproto.CommandFIFO, "7"); sendErr != nil {
		t.Fatalf("Send failed: %v", sendErr)
	}

	select {
	case got := <-received:
		if got != "FIFO-007\n" {
			t.Errorf("server received %q, want FIFO-007\\n", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to receive the line")
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close() // free the port so the dial is refused

	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad test port %q: %v", portStr, err)
	}

	s := NewSender(2*time.Second, 2*time.Second)
	sendErr := s.Send(context.Background(), host, port, shuttleproto.CommandHome, "")
	if sendErr == nil {
		t.Fatal("expected Send to fail against a closed port")
	}
	if sendErr.Class != FailureConnectionRefused {
		t.Errorf("Class = %s, want %s", sendErr.Class, FailureConnectionRefused)
	}
	if !IsRetriable(sendErr.Class) {
		t.Error("connection refused should be classified as retriable")
	}
}

func TestSenderConnectTimeout(t *testing.T) {
	// 10.255.255.1 is a non-routable address commonly used to force a
	// connect timeout in tests without relying on external network state.
	s := NewSender(50*time.Millisecond, time.Second)
	sendErr := s.Send(context.Background(), "10.255.255.1", 9, shuttleproto.CommandHome, "")
	if sendErr == nil {
		t.Skip("environment did not produce a connect timeout/error for the unroutable test address")
	}
	if !IsRetriable(sendErr.Class) {
		t.Errorf("Class = %s, expected a retriable classification", sendErr.Class)
	}
}
