package core

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/observability"
	"github.com/searchktools/tiny-server/core/pools"
)

func (e *Engine) listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlSocket}
	ln, err := lc.Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if e.opts.maxConnections > 0 {
		ln = netutil.LimitListener(ln, e.opts.maxConnections)
	}
	return ln, nil
}

// acceptLoop wraps every connection into a packet. It returns nil once the
// listener was closed for shutdown and the accept error otherwise.
func (e *Engine) acceptLoop(ln net.Listener, accepted *pools.Queue[*Packet], closing *atomic.Bool) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if closing.Load() {
				return nil
			}
			e.logger.Error("accept failed", zap.Error(err))
			return fmt.Errorf("accept: %w", err)
		}

		pkt := newPacket(conn, e.bytePool, e.opts.bufferSize, e.opts.readTimeout)
		if err := pkt.Mark(StageReceiving); err != nil {
			e.logger.DPanic("stage bookkeeping", zap.Stringer("packet", pkt), zap.Error(err))
		}
		if err := accepted.Push(pkt); err != nil {
			e.reject(pkt, err)
		}
	}
}

// forwardLoop moves accepted packets to the processors until the accepted
// queue is closed and drained
func (e *Engine) forwardLoop(accepted *pools.Queue[*Packet], executor *Executor) {
	for {
		pkt, ok := accepted.Pop()
		if !ok {
			return
		}
		e.monitor.SetQueueDepth("accepted", -1, accepted.Len())

		if err := pkt.Mark(StageBalancing); err != nil {
			e.logger.DPanic("stage bookkeeping", zap.Stringer("packet", pkt), zap.Error(err))
		}
		if err := executor.Execute(pkt); err != nil {
			e.reject(pkt, err)
		}
	}
}

// reject answers 503 straight from the calling loop and closes the connection
func (e *Engine) reject(pkt *Packet, cause error) {
	defer pkt.close()

	e.monitor.RecordDrop(observability.DropRejected)
	e.logger.Warn("packet rejected", zap.Stringer("packet", pkt), zap.Error(cause))

	pkt.SetResponse(http.NewError(http.StatusServiceUnavailable, busyMessage).Response())
	if err := pkt.write(pkt.response.Bytes(), e.opts.writeTimeout); err != nil {
		e.logger.Debug("reject write failed", zap.Stringer("packet", pkt), zap.Error(err))
	}
}
