package core

// Executor spreads packets over processors in round-robin order.
// It is only used from the forwarding loop, so the cursor needs no locking.
type Executor struct {
	processors []*Processor
	cursor     int
}

func newExecutor(processors []*Processor) *Executor {
	return &Executor{processors: processors}
}

// Execute hands p to the next processor. The cursor advances even when the
// push fails.
func (x *Executor) Execute(p *Packet) error {
	proc := x.processors[x.cursor]
	x.cursor = (x.cursor + 1) % len(x.processors)
	return proc.incoming.Push(p)
}

// close shuts every incoming queue; processors drain and exit
func (x *Executor) close() {
	for _, proc := range x.processors {
		proc.incoming.Close()
	}
}
