package core

import (
	"sync"
	"time"
)

// readGate tracks packets blocked reading their request. Once the engine
// shuts down it caps every read deadline at a cutoff, so an idle client
// cannot hold a processing loop forever.
type readGate struct {
	mu      sync.Mutex
	reading map[*Packet]time.Time
	cutoff  time.Time
}

func newReadGate() *readGate {
	return &readGate{reading: make(map[*Packet]time.Time)}
}

// enter registers pkt and arms its read deadline: the packet read timeout,
// or the shutdown cutoff when that comes first. A zero deadline means none.
func (g *readGate) enter(pkt *Packet) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var deadline time.Time
	if pkt.readTimeout > 0 {
		deadline = time.Now().Add(pkt.readTimeout)
	}
	if earlier(g.cutoff, deadline) {
		deadline = g.cutoff
	}
	g.reading[pkt] = deadline
	return pkt.armRead(deadline)
}

func (g *readGate) leave(pkt *Packet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reading, pkt)
}

// close sets the cutoff for pending reads and every read entered later
func (g *readGate) close(cutoff time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !earlier(cutoff, g.cutoff) {
		return
	}
	g.cutoff = cutoff
	for pkt, deadline := range g.reading {
		if earlier(cutoff, deadline) {
			// the reading goroutine owns the packet; only the conn is touched
			_ = pkt.conn.SetReadDeadline(cutoff)
			g.reading[pkt] = cutoff
		}
	}
}

func (g *readGate) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reading)
}

// earlier reports whether a comes before b, a zero time meaning never
func earlier(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	return b.IsZero() || a.Before(b)
}
