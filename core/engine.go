package core

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/searchktools/tiny-server/core/binder"
	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/middleware"
	"github.com/searchktools/tiny-server/core/observability"
	"github.com/searchktools/tiny-server/core/pools"
	"github.com/searchktools/tiny-server/core/router"
)

const instrumentation = "github.com/searchktools/tiny-server/core"

type options struct {
	workers        int
	exposing       bool
	bufferSize     int
	readTimeout    time.Duration
	writeTimeout   time.Duration
	drainTimeout   time.Duration
	queueBound     int
	queuePolicy    pools.Policy
	maxConnections int
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkers sets the number of processors
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.opts.workers = n
		}
	}
}

// WithExposing appends error details to 500 response bodies
func WithExposing(expose bool) Option {
	return func(e *Engine) {
		e.opts.exposing = expose
	}
}

// WithBufferSize sets the socket read chunk size
func WithBufferSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.opts.bufferSize = n
		}
	}
}

// WithReadTimeout bounds reading a request; zero disables it
func WithReadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.opts.readTimeout = d
	}
}

// WithWriteTimeout bounds writing a response; zero disables it
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.opts.writeTimeout = d
	}
}

// WithDrainTimeout bounds how long shutdown waits on requests still being
// read; reads pending past it are dropped
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.opts.drainTimeout = d
		}
	}
}

// WithQueue bounds the accepted and incoming queues. A bound of 0 leaves
// them unbounded.
func WithQueue(bound int, policy pools.Policy) Option {
	return func(e *Engine) {
		e.opts.queueBound = bound
		e.opts.queuePolicy = policy
	}
}

// WithMaxConnections caps simultaneously open connections; zero means no cap
func WithMaxConnections(n int) Option {
	return func(e *Engine) {
		e.opts.maxConnections = n
	}
}

// WithMiddleware wraps every handler call; the first middleware runs outermost
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) {
		for _, m := range mws {
			e.pipeline.Use(m)
		}
	}
}

// WithMonitor replaces the default Prometheus monitor
func WithMonitor(m *observability.Monitor) Option {
	return func(e *Engine) {
		if m != nil {
			e.monitor = m
		}
	}
}

// WithTracerProvider sets where request spans go; the global provider is
// used otherwise
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(instrumentation)
		}
	}
}

// Engine is a raw TCP HTTP/1.1 server. Routes are registered first, then
// Run serves them until its context is cancelled.
type Engine struct {
	logger   *zap.Logger
	monitor  *observability.Monitor
	tracer   trace.Tracer
	table    *router.Table[*binder.Callback]
	pipeline *middleware.Pipeline
	bytePool *pools.BytePool
	reads    *readGate
	opts     options

	mu         sync.Mutex
	running    atomic.Bool
	started    time.Time
	addr       net.Addr
	ready      chan struct{}
	accepted   *pools.Queue[*Packet]
	processors []*Processor
}

// NewEngine creates an engine with one processor per CPU and unbounded queues
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(instrumentation),
		table:    router.NewTable[*binder.Callback](),
		pipeline: middleware.NewPipeline(),
		bytePool: pools.NewBytePool(),
		reads:    newReadGate(),
		ready:    make(chan struct{}),
		opts: options{
			workers:      runtime.NumCPU(),
			bufferSize:   defaultBufferSize,
			drainTimeout: defaultDrainTimeout,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.monitor == nil {
		e.monitor = observability.NewMonitor("tiny")
	}
	return e
}

// Register binds cb to (path, method). Registering the same pair twice
// keeps the latest callback. Routes cannot be added once Run has started.
func (e *Engine) Register(path string, method http.Method, cb *binder.Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if !method.Valid() {
		return &http.InvalidMethodError{Method: string(method)}
	}
	p, err := http.ParsePath(path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return ErrEngineRunning
	}
	e.table.Register(p, method, cb)
	return nil
}

func (e *Engine) mustRegister(path string, method http.Method, cb *binder.Callback) {
	if err := e.Register(path, method, cb); err != nil {
		panic(fmt.Sprintf("register %s %s: %v", method, path, err))
	}
}

// GET registers a GET route and panics on error
func (e *Engine) GET(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodGet, cb)
}

// POST registers a POST route and panics on error
func (e *Engine) POST(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodPost, cb)
}

// PUT registers a PUT route and panics on error
func (e *Engine) PUT(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodPut, cb)
}

// PATCH registers a PATCH route and panics on error
func (e *Engine) PATCH(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodPatch, cb)
}

// DELETE registers a DELETE route and panics on error
func (e *Engine) DELETE(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodDelete, cb)
}

// HEAD registers a HEAD route and panics on error
func (e *Engine) HEAD(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodHead, cb)
}

// OPTIONS registers an OPTIONS route and panics on error
func (e *Engine) OPTIONS(path string, cb *binder.Callback) {
	e.mustRegister(path, http.MethodOptions, cb)
}

// Routes lists every registered (path, method) pair
func (e *Engine) Routes() []router.Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table.Routes()
}

// Monitor is the Prometheus monitor fed by the sending loops
func (e *Engine) Monitor() *observability.Monitor {
	return e.monitor
}

// Ready is closed once the listener is bound
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Addr is the bound address, nil before Ready
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// ListenAddr is the address Run binds for port: every interface when all
// is set, loopback otherwise
func ListenAddr(port int, all bool) string {
	host := "127.0.0.1"
	if all {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Run serves until ctx is cancelled or accepting fails.
//
// Cancelling ctx closes the listener; the queues are then closed in
// pipeline order and every loop drains what it already holds before
// exiting, so accepted connections still get their response. Requests not
// fully read within the drain timeout are dropped instead.
// Run can be called once per engine.
func (e *Engine) Run(ctx context.Context, addr string) error {
	e.mu.Lock()
	if !e.running.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return ErrEngineRunning
	}
	e.mu.Unlock()

	ln, err := e.listen(ctx, addr)
	if err != nil {
		e.running.Store(false)
		return err
	}

	accepted := pools.NewQueue[*Packet](e.opts.queueBound, e.opts.queuePolicy)
	processors := make([]*Processor, e.opts.workers)
	for i := range processors {
		processors[i] = newProcessor(i, e)
	}
	executor := newExecutor(processors)

	e.mu.Lock()
	e.addr = ln.Addr()
	e.started = time.Now()
	e.accepted = accepted
	e.processors = processors
	e.mu.Unlock()

	e.logger.Info("listening",
		zap.Stringer("addr", ln.Addr()),
		zap.Int("workers", len(processors)),
		zap.Int("queue_bound", e.opts.queueBound),
		zap.Stringer("queue_policy", e.opts.queuePolicy),
	)
	for _, r := range e.table.Routes() {
		e.logger.Debug("route", zap.String("method", string(r.Method)), zap.Stringer("path", r.Path))
	}
	close(e.ready)

	g, gctx := errgroup.WithContext(ctx)
	var closing atomic.Bool

	g.Go(func() error {
		<-gctx.Done()
		closing.Store(true)
		e.reads.close(time.Now().Add(e.opts.drainTimeout))
		_ = ln.Close()
		return nil
	})
	g.Go(func() error {
		defer accepted.Close()
		return e.acceptLoop(ln, accepted, &closing)
	})
	g.Go(func() error {
		defer executor.close()
		e.forwardLoop(accepted, executor)
		return nil
	})
	for _, proc := range processors {
		g.Go(proc.processingLoop)
		g.Go(proc.sendingLoop)
	}

	err = g.Wait()
	e.logger.Info("stopped", zap.Error(err))
	return err
}
