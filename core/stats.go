package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/searchktools/tiny-server/core/pools"
)

// QueueStats is the depth of one processor's queues
type QueueStats struct {
	Processor int `json:"processor"`
	Incoming  int `json:"incoming"`
	Processed int `json:"processed"`
}

// EngineStats is a point-in-time snapshot of the engine
type EngineStats struct {
	Running    bool                `json:"running"`
	Uptime     string              `json:"uptime"`
	Workers    int                 `json:"workers"`
	Routes     int                 `json:"routes"`
	Accepted   int                 `json:"accepted"`
	Processors []QueueStats        `json:"processors"`
	BytePool   pools.BytePoolStats `json:"byte_pool"`
}

// Stats returns queue depths and pool usage
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := EngineStats{
		Running:  e.running.Load(),
		Workers:  e.opts.workers,
		Routes:   len(e.table.Routes()),
		BytePool: e.bytePool.Stats(),
	}
	if !e.started.IsZero() {
		stats.Uptime = time.Since(e.started).Round(time.Millisecond).String()
	}
	if e.accepted != nil {
		stats.Accepted = e.accepted.Len()
	}
	for _, proc := range e.processors {
		stats.Processors = append(stats.Processors, QueueStats{
			Processor: proc.id,
			Incoming:  proc.incoming.Len(),
			Processed: proc.processed.Len(),
		})
	}
	return stats
}

// StatsText renders Stats for humans
func (e *Engine) StatsText() string {
	stats := e.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Engine Statistics\n=================\n\n")
	fmt.Fprintf(&b, "Running:  %t\nUptime:   %s\nWorkers:  %d\nRoutes:   %d\nAccepted: %d\n\n",
		stats.Running, stats.Uptime, stats.Workers, stats.Routes, stats.Accepted)
	for _, q := range stats.Processors {
		fmt.Fprintf(&b, "Processor %d: incoming=%d processed=%d\n", q.Processor, q.Incoming, q.Processed)
	}
	fmt.Fprintf(&b, "\nByte Pool:\n  Gets:   %d\n  Puts:   %d\n  Misses: %d\n",
		stats.BytePool.Gets, stats.BytePool.Puts, stats.BytePool.Misses)
	return b.String()
}
