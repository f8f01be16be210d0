package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchktools/tiny-server/core/http"
	"github.com/searchktools/tiny-server/core/pools"
)

// Stage is a step of the packet pipeline, in the order they happen
type Stage uint8

const (
	StageReceiving Stage = iota
	StageBalancing
	StageDecoding
	StageDispatching
	StageExecuting
	StageEncoding
	StageSending
	StageSent

	stageCount
)

var stageNames = [stageCount]string{
	"receiving",
	"balancing",
	"decoding",
	"dispatching",
	"executing",
	"encoding",
	"sending",
	"sent",
}

func (s Stage) String() string {
	if s < stageCount {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Stats holds one timestamp per stage plus the handler window
type Stats struct {
	marks      [stageCount]time.Time
	handlerIn  time.Time
	handlerOut time.Time
}

// Mark stamps stage with now. A stage is stamped at most once, and never
// once a later stage has been stamped.
func (s *Stats) Mark(stage Stage, now time.Time) error {
	if stage >= stageCount {
		return fmt.Errorf("unknown %s", stage)
	}
	if !s.marks[stage].IsZero() {
		return fmt.Errorf("%w: %s", ErrStageMarked, stage)
	}
	for later := stage + 1; later < stageCount; later++ {
		if !s.marks[later].IsZero() {
			return fmt.Errorf("%w: %s after %s", ErrStageOrder, stage, later)
		}
	}
	s.marks[stage] = now
	return nil
}

// At returns the timestamp of stage
func (s *Stats) At(stage Stage) (time.Time, bool) {
	if stage >= stageCount || s.marks[stage].IsZero() {
		return time.Time{}, false
	}
	return s.marks[stage], true
}

// EnterHandler stamps the start of the handler window
func (s *Stats) EnterHandler(now time.Time) error {
	if !s.handlerIn.IsZero() {
		return fmt.Errorf("%w: handler entry", ErrStageMarked)
	}
	s.handlerIn = now
	return nil
}

// ExitHandler stamps the end of the handler window
func (s *Stats) ExitHandler(now time.Time) error {
	switch {
	case s.handlerIn.IsZero():
		return fmt.Errorf("%w: handler exit before entry", ErrStageOrder)
	case !s.handlerOut.IsZero():
		return fmt.Errorf("%w: handler exit", ErrStageMarked)
	}
	s.handlerOut = now
	return nil
}

// Total is the time from accept to the last byte written
func (s *Stats) Total() (time.Duration, bool) {
	start, sent := s.marks[StageReceiving], s.marks[StageSent]
	if start.IsZero() || sent.IsZero() {
		return 0, false
	}
	return sent.Sub(start), true
}

// Handler is the time spent inside the handler function
func (s *Stats) Handler() (time.Duration, bool) {
	if s.handlerIn.IsZero() || s.handlerOut.IsZero() {
		return 0, false
	}
	return s.handlerOut.Sub(s.handlerIn), true
}

// String renders "<total> (<handler>)" in milliseconds, N/A when unknown
func (s *Stats) String() string {
	return fmtMillis(s.Total()) + " (" + fmtMillis(s.Handler()) + ")"
}

func fmtMillis(d time.Duration, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// Packet is one connection travelling through the pipeline.
//
// It owns its net.Conn until the sending loop closes it. Exactly one
// goroutine touches a packet at a time; queue hand-off transfers ownership.
type Packet struct {
	id    uuid.UUID
	conn  net.Conn
	peer  netip.AddrPort
	stats Stats

	pool        *pools.BytePool
	bufferSize  int
	readTimeout time.Duration

	raw     []byte
	readErr error
	read    bool
	armed   bool

	req      *http.Request
	parseErr error
	parsed   bool

	route    string
	response *http.Response
	encoded  []byte
}

func newPacket(conn net.Conn, pool *pools.BytePool, bufferSize int, readTimeout time.Duration) *Packet {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if pool == nil {
		pool = pools.NewBytePool()
	}
	return &Packet{
		id:          uuid.New(),
		conn:        conn,
		peer:        peerOf(conn.RemoteAddr()),
		pool:        pool,
		bufferSize:  bufferSize,
		readTimeout: readTimeout,
	}
}

// peerOf reduces the remote address to an IPv4 address and port where possible
func peerOf(addr net.Addr) netip.AddrPort {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		ap := tcp.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	if addr == nil {
		return netip.AddrPort{}
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

func (p *Packet) ID() uuid.UUID {
	return p.id
}

func (p *Packet) Peer() netip.AddrPort {
	return p.peer
}

func (p *Packet) Stats() *Stats {
	return &p.stats
}

// Mark stamps stage with the current time
func (p *Packet) Mark(stage Stage) error {
	return p.stats.Mark(stage, time.Now())
}

// armRead sets the deadline the request is read under, replacing the one
// RequestBytes would derive from the read timeout
func (p *Packet) armRead(deadline time.Time) error {
	p.armed = true
	if deadline.IsZero() {
		return nil
	}
	return p.conn.SetReadDeadline(deadline)
}

// RequestBytes reads the raw request on first use.
//
// The socket is read in BufferSize chunks until a chunk comes back short;
// there is no Content-Length framing. A peer closing its side counts as the
// end of the request. A request whose size is an exact multiple of
// BufferSize therefore waits for the peer to close or the deadline to pass.
func (p *Packet) RequestBytes() ([]byte, error) {
	if p.read {
		return p.raw, p.readErr
	}
	p.read = true

	if !p.armed && p.readTimeout > 0 {
		if err := p.armRead(time.Now().Add(p.readTimeout)); err != nil {
			p.readErr = err
			return nil, err
		}
	}

	var buf []byte
	for {
		chunk := p.pool.Get(p.bufferSize)
		n, err := p.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		p.pool.Put(chunk)

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.readErr = fmt.Errorf("read request: %w", err)
			return nil, p.readErr
		}
		if n < p.bufferSize {
			break
		}
	}

	p.raw = buf
	return p.raw, nil
}

// Request reads and parses the request on first use. The result, success
// or failure, is cached.
func (p *Packet) Request() (*http.Request, error) {
	if p.parsed {
		return p.req, p.parseErr
	}
	p.parsed = true

	raw, err := p.RequestBytes()
	if err != nil {
		p.parseErr = err
		return nil, err
	}
	p.req, p.parseErr = http.ParseRequest(raw)
	return p.req, p.parseErr
}

// SetResponse attaches the response to send
func (p *Packet) SetResponse(res *http.Response) {
	p.response = res
	p.encoded = nil
}

func (p *Packet) Response() *http.Response {
	return p.response
}

// ResponseBytes encodes the response on first use and marks StageEncoding
func (p *Packet) ResponseBytes() ([]byte, error) {
	if p.response == nil {
		return nil, ErrNoResponse
	}
	if p.encoded != nil {
		return p.encoded, nil
	}
	if err := p.Mark(StageEncoding); err != nil {
		return nil, err
	}
	p.encoded = p.response.Bytes()
	return p.encoded, nil
}

// write sends data in full, honoring the write timeout
func (p *Packet) write(data []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	for len(data) > 0 {
		n, err := p.conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (p *Packet) close() error {
	return p.conn.Close()
}

// String renders "peer - METHOD /path - status" with N/A for unknown parts
func (p *Packet) String() string {
	var b strings.Builder
	if p.peer.IsValid() {
		b.WriteString(p.peer.String())
	} else {
		b.WriteString("N/A")
	}

	b.WriteString(" - ")
	if p.req != nil {
		b.WriteString(string(p.req.Method()))
		b.WriteByte(' ')
		b.WriteString(p.req.Path().String())
	} else {
		b.WriteString("N/A N/A")
	}

	b.WriteString(" - ")
	if p.response != nil {
		b.WriteString(p.response.Status().String())
	} else {
		b.WriteString("N/A")
	}
	return b.String()
}
