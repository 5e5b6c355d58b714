package apps

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startServerApp runs app until the test ends and returns its bound port.
func startServerApp(t *testing.T, app *ServerApp) uint16 {
	t.Helper()
	bound := make(chan net.Addr, 1)
	app.Host = "127.0.0.1"
	app.OnListen = func(addr net.Addr) { bound <- addr }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	select {
	case addr := <-bound:
		return uint16(addr.(*net.TCPAddr).Port)
	case err := <-done:
		t.Fatalf("server app exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server app did not start listening")
	}
	return 0
}

func runClientApp(t *testing.T, port, count uint16, timeout time.Duration, stats bool) string {
	t.Helper()
	var out bytes.Buffer
	app := &ClientApp{
		Host:        "127.0.0.1",
		Port:        port,
		Count:       count,
		Timeout:     timeout,
		DialTimeout: time.Second,
		Stats:       stats,
		Out:         &out,
	}
	require.NoError(t, app.Run(context.Background()))
	return out.String()
}

func firstLine(s string) string {
	return strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
}

func TestClientServerNormalCase(t *testing.T) {
	srv, err := NewServerApp()
	require.NoError(t, err)
	port := startServerApp(t, srv)
	require.Equal(t, "Received: 1 2 3 4 5", firstLine(runClientApp(t, port, 5, time.Second, false)))
}

func TestClientServerOneCase(t *testing.T) {
	srv, err := NewServerApp()
	require.NoError(t, err)
	port := startServerApp(t, srv)
	require.Equal(t, "Received: 1\n", runClientApp(t, port, 1, time.Second, false))
}

func TestClientServerStats(t *testing.T) {
	srv, err := NewServerApp()
	require.NoError(t, err)
	port := startServerApp(t, srv)
	out := runClientApp(t, port, 3, time.Second, true)
	require.Equal(t, "Received: 1 2 3", firstLine(out))
	require.Contains(t, out, "3 out of 3 messages received.")
}

// lossyEcho answers the handshake with the first item intact and every later item
// truncated to one byte, then holds the connection open.
func lossyEcho(t *testing.T) uint16 {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		for _, chunk := range []string{"1\n", "2", "3", "4", "5"} {
			if _, err := io.WriteString(conn, chunk); err != nil {
				return
			}
		}
		<-release
	}()
	t.Cleanup(func() {
		close(release)
		lis.Close()
		<-done
	})
	return uint16(lis.Addr().(*net.TCPAddr).Port)
}

func TestClientDropPackets(t *testing.T) {
	port := lossyEcho(t)
	line := firstLine(runClientApp(t, port, 5, 200*time.Millisecond, false))
	require.True(t, strings.HasPrefix(line, "Received:"))
	require.Less(t, len(strings.Split(line, " ")), 6)
}

func TestClientConnectionRefused(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(lis.Addr().(*net.TCPAddr).Port)
	require.NoError(t, lis.Close())

	app := &ClientApp{Host: "127.0.0.1", Port: port, Count: 5, Timeout: time.Second, DialTimeout: time.Second, Out: io.Discard}
	require.Error(t, app.Run(context.Background()))
}

func TestServerSuddenConnectionCut(t *testing.T) {
	srv, err := NewServerApp()
	require.NoError(t, err)
	port := startServerApp(t, srv)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(port)))
	require.NoError(t, err)
	_, err = conn.Write([]byte(strings.Repeat("Hello World!", 7)))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, "Received: 1 2 3", firstLine(runClientApp(t, port, 3, time.Second, false)))
}

func TestServerBindFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	app, err := NewServerApp()
	require.NoError(t, err)
	app.Host = "127.0.0.1"
	app.Port = uint16(lis.Addr().(*net.TCPAddr).Port)
	require.Error(t, app.Run(context.Background()))
}

func TestServerMetricsEndpoint(t *testing.T) {
	mlis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	metricsPort := uint16(mlis.Addr().(*net.TCPAddr).Port)
	require.NoError(t, mlis.Close())

	srv, err := NewServerApp()
	require.NoError(t, err)
	srv.MetricsPort = metricsPort
	port := startServerApp(t, srv)
	require.Equal(t, "Received: 1 2", firstLine(runClientApp(t, port, 2, time.Second, false)))

	resp, err := http.Get("http://" + net.JoinHostPort("127.0.0.1", itoa(metricsPort)) + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "seqstream_items_sent_total")
}

func itoa(p uint16) string {
	return strconv.FormatUint(uint64(p), 10)
}
