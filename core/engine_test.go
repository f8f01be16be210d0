package core

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/searchktools/tiny-server/core/binder"
	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/middleware"
	"github.com/searchktools/tiny-server/core/pools"
)

const adminToken = "letmein"

func echo() *binder.Callback {
	return binder.Must(func(args binder.Args) (any, error) {
		return args.String(0), nil
	}, binder.ReturnStr, binder.Body(binder.Str))
}

func testRoutes(e *Engine) {
	e.POST("/echo", echo())
	e.GET("/area", binder.Must(func(args binder.Args) (any, error) {
		return args.Int(0) * args.Int(0), nil
	}, binder.ReturnInt, binder.Param("area", binder.Int)))

	isAdmin := binder.Must(func(args binder.Args) (any, error) {
		return args.String(0) == adminToken, nil
	}, binder.ReturnJSON, binder.Header("X-Token", binder.Str))
	e.GET("/admin", binder.Must(func(args binder.Args) (any, error) {
		if args.Bool(0) {
			return "welcome", nil
		}
		return "guest", nil
	}, binder.ReturnStr, binder.Depends(isAdmin)))

	e.GET("/faulty", binder.Must(func(binder.Args) (any, error) {
		return nil, errors.New("boom")
	}, binder.ReturnNone))
	e.GET("/panic", binder.Must(func(binder.Args) (any, error) {
		panic("kaput")
	}, binder.ReturnNone))
	e.GET("/teapot", binder.Must(func(binder.Args) (any, error) {
		return nil, http.NewError(http.StatusTeapot, "short and stout", http.WithJSONKey("detail"))
	}, binder.ReturnNever))
}

// startEngine runs an engine on a free loopback port until the test ends
func startEngine(t *testing.T, opts ...Option) (*Engine, string) {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithWorkers(2)}, opts...)
	e := NewEngine(opts...)
	testRoutes(e)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, "127.0.0.1:0") }()

	select {
	case <-e.Ready():
	case err := <-done:
		t.Fatalf("engine did not start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not start in time")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop in time")
		}
	})
	return e, e.Addr().String()
}

// roundTrip writes raw and reads until the server closes the connection
func roundTrip(t *testing.T, addr, raw string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp4", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(out)
}

func call(t *testing.T, addr, raw string) *http.Response {
	t.Helper()
	res, err := http.ParseResponse([]byte(roundTrip(t, addr, raw)))
	require.NoError(t, err)
	return res
}

func TestEngineEcho(t *testing.T) {
	_, addr := startEngine(t)

	out := roundTrip(t, addr, "POST /echo HTTP/1.1\r\nContent-Type: text/plain\r\n\r\nhi")
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\nhi", out)
}

func TestEngineNotFound(t *testing.T) {
	_, addr := startEngine(t)

	res := call(t, addr, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotFound, res.Status())
}

func TestEngineMethodNotAllowed(t *testing.T) {
	_, addr := startEngine(t)

	res := call(t, addr, "GET /echo HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status())
	allow, ok := res.Header(HeaderAllow)
	assert.True(t, ok)
	assert.Equal(t, "POST", allow)
}

func TestEngineMissingQuery(t *testing.T) {
	_, addr := startEngine(t)

	res := call(t, addr, "GET /area HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusUnprocessableContent, res.Status())
	assert.Equal(t, "missing required input", string(res.Body()))

	res = call(t, addr, "GET /area?area=7 HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusOK, res.Status())
	assert.Equal(t, "49", string(res.Body()))

	res = call(t, addr, "GET /area?area=seven HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusUnprocessableContent, res.Status())
}

func TestEngineDependency(t *testing.T) {
	_, addr := startEngine(t)

	res := call(t, addr, "GET /admin HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusUnprocessableContent, res.Status())

	res = call(t, addr, "GET /admin HTTP/1.1\r\nX-Token: nope\r\n\r\n")
	assert.Equal(t, http.StatusOK, res.Status())
	assert.Equal(t, "guest", string(res.Body()))

	res = call(t, addr, "GET /admin HTTP/1.1\r\nx_token: "+adminToken+"\r\n\r\n")
	assert.Equal(t, "welcome", string(res.Body()))
}

func TestEngineHandlerFailures(t *testing.T) {
	t.Run("hidden", func(t *testing.T) {
		_, addr := startEngine(t)

		res := call(t, addr, "GET /faulty HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, res.Status())
		assert.Equal(t, "internal server error", string(res.Body()))

		res = call(t, addr, "GET /panic HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusInternalServerError, res.Status())
	})

	t.Run("exposed", func(t *testing.T) {
		_, addr := startEngine(t, WithExposing(true))

		res := call(t, addr, "GET /faulty HTTP/1.1\r\n\r\n")
		assert.Equal(t, "internal server error: boom", string(res.Body()))

		res = call(t, addr, "GET /panic HTTP/1.1\r\n\r\n")
		assert.Contains(t, string(res.Body()), "kaput")
	})

	t.Run("structured", func(t *testing.T) {
		_, addr := startEngine(t)

		res := call(t, addr, "GET /teapot HTTP/1.1\r\n\r\n")
		assert.Equal(t, http.StatusTeapot, res.Status())
		assert.JSONEq(t, `{"detail":"short and stout"}`, string(res.Body()))
	})
}

func TestEngineMiddleware(t *testing.T) {
	_, addr := startEngine(t, WithMiddleware(
		middleware.SetHeaders("Server", "tiny"),
		middleware.RequireHeader("X-Api-Key"),
	))

	out := roundTrip(t, addr, "POST /echo HTTP/1.1\r\nX-Api-Key: k\r\n\r\nhi")
	assert.Equal(t, "HTTP/1.1 200 OK\r\nServer: tiny\r\n\r\nhi", out)

	res := call(t, addr, "POST /echo HTTP/1.1\r\n\r\nhi")
	assert.Equal(t, http.StatusUnauthorized, res.Status())

	// dispatch failures never reach the middlewares
	res = call(t, addr, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, http.StatusNotFound, res.Status())
}

func TestEngineUnsupportedVersion(t *testing.T) {
	_, addr := startEngine(t)

	res := call(t, addr, "GET /echo HTTP/1.0\r\n\r\n")
	assert.Equal(t, http.StatusHTTPVersionNotSupported, res.Status())
}

func TestEngineDropsInvalidRequests(t *testing.T) {
	_, addr := startEngine(t)

	for _, raw := range []string{
		"FETCH /echo HTTP/1.1\r\n\r\n",
		"GET echo HTTP/1.1\r\n\r\n",
		"garbage\r\n\r\n",
	} {
		assert.Empty(t, roundTrip(t, addr, raw), raw)
	}
}

func TestEngineDropsEmptyRequests(t *testing.T) {
	_, addr := startEngine(t)

	conn, err := net.DialTimeout("tcp4", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEngineConcurrentClients(t *testing.T) {
	_, addr := startEngine(t, WithWorkers(4), WithQueue(8, pools.Block))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := roundTrip(t, addr, "POST /echo HTTP/1.1\r\n\r\nping")
			assert.True(t, strings.HasSuffix(out, "\r\n\r\nping"), out)
		}()
	}
	wg.Wait()
}

func TestEngineMetrics(t *testing.T) {
	e, addr := startEngine(t)
	roundTrip(t, addr, "POST /echo HTTP/1.1\r\n\r\nhi")
	roundTrip(t, addr, "GET /missing HTTP/1.1\r\n\r\n")

	// the sending loop records after the connection is closed
	require.Eventually(t, func() bool {
		text, err := e.Monitor().Text()
		return err == nil &&
			strings.Contains(string(text), `tiny_http_requests_total{method="POST",route="/echo",status="200"} 1`) &&
			strings.Contains(string(text), `tiny_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineRegister(t *testing.T) {
	e := NewEngine()

	assert.ErrorIs(t, e.Register("/x", http.MethodGet, nil), ErrNilCallback)
	assert.ErrorIs(t, e.Register("x", http.MethodGet, echo()), http.ErrInvalidRequest)
	assert.ErrorIs(t, e.Register("/x", http.Method("FETCH"), echo()), http.ErrInvalidRequest)
	assert.Panics(t, func() { e.GET("no-slash", echo()) })

	require.NoError(t, e.Register("/x", http.MethodGet, echo()))
	require.NoError(t, e.Register("/x", http.MethodGet, echo()))
	assert.Len(t, e.Routes(), 1)
}

func TestEngineRegisterWhileRunning(t *testing.T) {
	e, _ := startEngine(t)

	assert.ErrorIs(t, e.Register("/late", http.MethodGet, echo()), ErrEngineRunning)
	assert.ErrorIs(t, e.Run(context.Background(), "127.0.0.1:0"), ErrEngineRunning)
}

func TestEngineShutdown(t *testing.T) {
	e := NewEngine(WithLogger(zaptest.NewLogger(t)), WithWorkers(3))
	testRoutes(e)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, "127.0.0.1:0") }()
	<-e.Ready()
	addr := e.Addr().String()

	res := call(t, addr, "POST /echo HTTP/1.1\r\n\r\nbye")
	assert.Equal(t, "bye", string(res.Body()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err := net.DialTimeout("tcp4", addr, 500*time.Millisecond)
	assert.Error(t, err)
}

func TestEngineShutdownIdleClient(t *testing.T) {
	e := NewEngine(WithLogger(zaptest.NewLogger(t)), WithWorkers(1), WithDrainTimeout(100*time.Millisecond))
	testRoutes(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, "127.0.0.1:0") }()
	<-e.Ready()

	// connect and never write
	conn, err := net.DialTimeout("tcp4", e.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return e.reads.pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run stayed blocked on a silent client")
	}

	// dropped without a response
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEngineStats(t *testing.T) {
	e := NewEngine(WithWorkers(3))
	testRoutes(e)

	stats := e.Stats()
	assert.False(t, stats.Running)
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 6, stats.Routes)
	assert.Empty(t, stats.Processors)
	assert.Contains(t, e.StatsText(), "Workers:  3")
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ListenAddr(8080, false))
	assert.Equal(t, "0.0.0.0:80", ListenAddr(80, true))
}
