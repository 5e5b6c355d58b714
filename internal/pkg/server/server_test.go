package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"seqstream/internal/pkg/handler"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfgs ...Cfg) *Server {
	t.Helper()
	s, err := NewServer(cfgs...)
	require.NoError(t, err)
	require.NoError(t, s.Listen(context.Background(), "127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return s
}

func fetch(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Write([]byte(request))
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}

func waitIdle(t *testing.T, s *Server) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Stats().ActiveSessions == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestServeStreamsSequence(t *testing.T) {
	s := startServer(t)
	addr := s.Addr().String()
	require.Equal(t, "1\n2\n3\n4\n5\n", fetch(t, addr, "5\n"))
	require.Equal(t, "1\n", fetch(t, addr, "1\n"))
	waitIdle(t, s)
	stats := s.Stats()
	require.Equal(t, int64(2), stats.TotalSessions)
	require.Equal(t, addr, stats.Address)
}

func TestServerSurvivesSuddenConnectionCut(t *testing.T) {
	s := startServer(t)
	addr := s.Addr().String()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte(strings.Repeat("Hello World!", 7)))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Equal(t, "1\n2\n3\n", fetch(t, addr, "3\n"))
}

func TestServerSurvivesMidStreamDisconnect(t *testing.T) {
	s := startServer(t, WithHandlerCfgs(handler.WithInterval(time.Millisecond)))
	addr := s.Addr().String()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("60000\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "1\n", line)
	require.NoError(t, conn.Close())

	require.Equal(t, "1\n2\n", fetch(t, addr, "2\n"))
	waitIdle(t, s)
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	require.NoError(t, s.Listen(context.Background(), "127.0.0.1:0"))
	addr := s.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	require.Equal(t, "1\n", fetch(t, addr, "1\n"))
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	_, err = net.DialTimeout("tcp", addr, time.Second)
	require.Error(t, err)
}

func TestCloseCancelsRunningSession(t *testing.T) {
	s, err := NewServer(WithHandlerCfgs(handler.WithInterval(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.Listen(context.Background(), "127.0.0.1:0"))
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background())
	}()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("5\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "1\n", line)

	require.NoError(t, s.Close())
	require.NoError(t, <-done)
	require.Zero(t, s.Stats().ActiveSessions)
	require.NoError(t, s.Close())
}

func TestListenFailsOnBoundPort(t *testing.T) {
	s := startServer(t)
	other, err := NewServer()
	require.NoError(t, err)
	require.Error(t, other.Listen(context.Background(), s.Addr().String()))
	require.ErrorIs(t, other.Serve(context.Background()), ErrNotListening)
}

func TestTemporaryAcceptError(t *testing.T) {
	accept := func(errno syscall.Errno) error {
		return &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", errno)}
	}
	require.True(t, temporaryAcceptError(accept(syscall.EMFILE)))
	require.True(t, temporaryAcceptError(accept(syscall.ENFILE)))
	require.False(t, temporaryAcceptError(accept(syscall.ECONNABORTED)))
	require.False(t, temporaryAcceptError(net.ErrClosed))
}

func TestListenTwice(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	require.NoError(t, s.Listen(context.Background(), "127.0.0.1:0"))
	defer s.Close()
	require.ErrorIs(t, s.Listen(context.Background(), "127.0.0.1:0"), ErrAlreadyListening)
}

func TestConcurrentSessions(t *testing.T) {
	s := startServer(t,
		WithMaxSessions(4),
		WithHandlerCfgs(handler.WithInterval(5*time.Millisecond)),
	)
	addr := s.Addr().String()

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write([]byte("4\n")); err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			results[i] = string(data)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		require.Equal(t, "1\n2\n3\n4\n", r)
	}
	waitIdle(t, s)
}

func TestMetrics(t *testing.T) {
	completed := testutil.ToFloat64(sessionsTotal.WithLabelValues(string(handler.OutcomeCompleted)))
	badHandshake := testutil.ToFloat64(sessionsTotal.WithLabelValues(string(handler.OutcomeBadHandshake)))
	items := testutil.ToFloat64(itemsSent)

	s := startServer(t)
	addr := s.Addr().String()
	require.Equal(t, "1\n2\n3\n4\n5\n", fetch(t, addr, "5\n"))
	require.Empty(t, fetch(t, addr, "nope\n"))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sessionsTotal.WithLabelValues(string(handler.OutcomeBadHandshake))) == badHandshake+1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, completed+1, testutil.ToFloat64(sessionsTotal.WithLabelValues(string(handler.OutcomeCompleted))))
	require.Equal(t, items+5, testutil.ToFloat64(itemsSent))
	require.Zero(t, testutil.ToFloat64(sessionsActive))
}
