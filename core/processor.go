package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/searchktools/tiny-server/core/binder"
	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/observability"
	"github.com/searchktools/tiny-server/core/pools"
	"github.com/searchktools/tiny-server/core/router"
)

// Processor owns two loops: processing turns incoming packets into
// responses, sending writes them out and closes the connections.
// Packets leave a processor in the order they arrived.
type Processor struct {
	id     int
	engine *Engine
	logger *zap.Logger

	incoming  *pools.Queue[*Packet]
	processed *pools.Queue[*Packet]
}

func newProcessor(id int, e *Engine) *Processor {
	return &Processor{
		id:        id,
		engine:    e,
		logger:    e.logger.With(zap.Int("processor", id)),
		incoming:  pools.NewQueue[*Packet](e.opts.queueBound, e.opts.queuePolicy),
		processed: pools.NewQueue[*Packet](0, pools.Block),
	}
}

func (p *Processor) processingLoop() error {
	defer p.processed.Close()

	for {
		pkt, ok := p.incoming.Pop()
		if !ok {
			return nil
		}
		p.engine.monitor.SetQueueDepth("incoming", p.id, p.incoming.Len())

		if !p.process(pkt) {
			continue
		}
		// the processed queue is unbounded and only closed by this loop
		if err := p.processed.Push(pkt); err != nil {
			p.logger.Error("processed queue refused packet", zap.Stringer("packet", pkt), zap.Error(err))
			_ = pkt.close()
		}
	}
}

func (p *Processor) sendingLoop() error {
	for {
		pkt, ok := p.processed.Pop()
		if !ok {
			return nil
		}
		p.engine.monitor.SetQueueDepth("processed", p.id, p.processed.Len())
		p.send(pkt)
	}
}

// process fills in the packet response. It reports false for packets that
// were dropped without a response.
func (p *Processor) process(pkt *Packet) bool {
	p.mark(pkt, StageDecoding)

	if err := p.engine.reads.enter(pkt); err != nil {
		p.logger.Debug("could not arm read deadline", zap.Stringer("packet", pkt), zap.Error(err))
	}
	req, err := pkt.Request()
	p.engine.reads.leave(pkt)
	if err != nil {
		var httpErr *http.Error
		switch {
		case errors.Is(err, http.ErrEmptyRequest):
			p.logger.Debug("empty request", zap.Stringer("packet", pkt))
			p.drop(pkt, observability.DropEmpty)
			return false
		case errors.As(err, &httpErr):
			pkt.SetResponse(httpErr.Response())
			return true
		case errors.Is(err, http.ErrInvalidRequest):
			p.logger.Warn("invalid request", zap.Stringer("packet", pkt), zap.Error(err))
			p.drop(pkt, observability.DropInvalid)
			return false
		default:
			p.logger.Warn("could not read request", zap.Stringer("packet", pkt), zap.Error(err))
			p.drop(pkt, observability.DropRead)
			return false
		}
	}

	p.mark(pkt, StageDispatching)
	cb, err := p.engine.table.Dispatch(req.Path(), req.Method())
	if err != nil {
		pkt.SetResponse(dispatchFailure(err))
		return true
	}
	pkt.route = req.Path().String()

	p.mark(pkt, StageExecuting)
	pkt.SetResponse(p.execute(pkt, req, cb))
	return true
}

func dispatchFailure(err error) *http.Response {
	var notAllowed *router.MethodNotAllowedError
	if errors.As(err, &notAllowed) {
		return http.NewError(http.StatusMethodNotAllowed, "",
			http.WithHeader(HeaderAllow, notAllowed.Allow())).Response()
	}
	return http.NewError(http.StatusNotFound, "").Response()
}

// execute runs the callback inside a span and converts every failure,
// panics included, into a response
func (p *Processor) execute(pkt *Packet, req *http.Request, cb *binder.Callback) (res *http.Response) {
	_, span := p.engine.tracer.Start(context.Background(), string(req.Method())+" "+pkt.route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("request.id", pkt.id.String()),
			attribute.String("http.request.method", string(req.Method())),
			attribute.String("url.path", req.Path().String()),
			attribute.String("client.address", pkt.peer.String()),
			attribute.Int("processor", p.id),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Int("http.response.status_code", int(res.Status())))
		if res.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, res.Status().String())
		}
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("handler panic: %v", r)
			p.logger.Error("handler panicked", zap.Stringer("packet", pkt), zap.Any("panic", r), zap.Stack("stack"))
			span.RecordError(err)
			res = p.internalError(err)
		}
	}()

	handler := p.engine.pipeline.Then(func(req *http.Request) (*http.Response, error) {
		return cb.Call(req, binder.Hooks{
			Before: func() { p.stamp(pkt, pkt.stats.EnterHandler) },
			After:  func() { p.stamp(pkt, pkt.stats.ExitHandler) },
		})
	})
	res, err := handler(req)
	if err == nil && res != nil {
		return res
	}
	if err == nil {
		err = ErrNoResponse
	}

	var httpErr *http.Error
	if errors.As(err, &httpErr) {
		return httpErr.Response()
	}
	p.logger.Error("handler failed", zap.Stringer("packet", pkt), zap.Error(err))
	span.RecordError(err)
	return p.internalError(err)
}

func (p *Processor) internalError(err error) *http.Response {
	msg := internalError
	if p.engine.opts.exposing {
		msg += ": " + err.Error()
	}
	return http.NewError(http.StatusInternalServerError, msg).Response()
}

// send writes the response and always closes the connection
func (p *Processor) send(pkt *Packet) {
	defer func() {
		if err := pkt.close(); err != nil {
			p.logger.Debug("close failed", zap.Stringer("packet", pkt), zap.Error(err))
		}
	}()

	data, err := pkt.ResponseBytes()
	if err != nil {
		p.logger.DPanic("could not encode response", zap.Stringer("packet", pkt), zap.Error(err))
		p.engine.monitor.RecordDrop(observability.DropWrite)
		return
	}

	p.mark(pkt, StageSending)
	if err := pkt.write(data, p.engine.opts.writeTimeout); err != nil {
		p.logger.Warn("write failed", zap.Stringer("packet", pkt), zap.Error(err))
		p.engine.monitor.RecordDrop(observability.DropWrite)
		return
	}
	p.mark(pkt, StageSent)

	p.logger.Info(pkt.String(),
		zap.String("id", pkt.id.String()),
		zap.Stringer("stats", &pkt.stats),
	)
	p.record(pkt, len(data))
}

func (p *Processor) record(pkt *Packet, size int) {
	method, route := "N/A", observability.Unmatched
	if pkt.req != nil {
		method = string(pkt.req.Method())
	}
	if pkt.route != "" {
		route = pkt.route
	}
	total, _ := pkt.stats.Total()
	handler, _ := pkt.stats.Handler()
	p.engine.monitor.RecordRequest(method, route, int(pkt.response.Status()), total, handler, size)
}

// drop closes a packet that gets no response
func (p *Processor) drop(pkt *Packet, reason string) {
	p.engine.monitor.RecordDrop(reason)
	if err := pkt.close(); err != nil {
		p.logger.Debug("close failed", zap.Stringer("packet", pkt), zap.Error(err))
	}
}

func (p *Processor) mark(pkt *Packet, stage Stage) {
	if err := pkt.Mark(stage); err != nil {
		p.logger.DPanic("stage bookkeeping", zap.Stringer("packet", pkt), zap.Error(err))
	}
}

// stamp runs a handler window update and reports bookkeeping bugs
func (p *Processor) stamp(pkt *Packet, fn func(time.Time) error) {
	if err := fn(time.Now()); err != nil {
		p.logger.DPanic("stage bookkeeping", zap.Stringer("packet", pkt), zap.Error(err))
	}
}
