// Package mock provides an in-process comm.Communication implementation
// backed by Go channels, used by coupling-scheme and partition tests in
// place of a real transport: a hand-written double shaped like the real
// thing, not a wire transport.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/couplingerrors"
)

type message struct {
	scalar   float64
	boolean  bool
	buffer   []float64
	kind     comm.Kind
	str      string
	isBool   bool
	isBuf    bool
	isString bool
}

// pipe is a full-duplex pair of unbuffered-ish channels; both ends share
// the same pipe object but read/write opposite channels.
type pipe struct {
	aToB chan message
	bToA chan message
}

func newPipe() *pipe {
	return &pipe{aToB: make(chan message, 64), bToA: make(chan message, 64)}
}

// endpoint is one side of a pipe.
type endpoint struct {
	send, recv chan message
}

func (e *endpoint) SendScalar(ctx context.Context, v float64) error {
	return e.send1(ctx, message{scalar: v})
}

func (e *endpoint) ReceiveScalar(ctx context.Context) (float64, error) {
	m, err := e.recv1(ctx)
	if err != nil {
		return 0, err
	}
	return m.scalar, nil
}

func (e *endpoint) SendBool(ctx context.Context, v bool) error {
	return e.send1(ctx, message{boolean: v, isBool: true})
}

func (e *endpoint) ReceiveBool(ctx context.Context) (bool, error) {
	m, err := e.recv1(ctx)
	if err != nil {
		return false, err
	}
	return m.boolean, nil
}

func (e *endpoint) SendBuffer(ctx context.Context, kind comm.Kind, buf []float64) error {
	cp := append([]float64(nil), buf...)
	return e.send1(ctx, message{buffer: cp, kind: kind, isBuf: true})
}

func (e *endpoint) ReceiveBuffer(ctx context.Context, kind comm.Kind, n int) ([]float64, error) {
	m, err := e.recv1(ctx)
	if err != nil {
		return nil, err
	}
	if !m.isBuf || m.kind != kind {
		return nil, couplingerrors.New(couplingerrors.ProtocolError, "mock channel: expected buffer of kind %v", kind)
	}
	if len(m.buffer) != n {
		return nil, couplingerrors.New(couplingerrors.ProtocolError,
			"mock channel: expected buffer of length %d, got %d", n, len(m.buffer))
	}
	return m.buffer, nil
}

func (e *endpoint) SendString(ctx context.Context, v string) error {
	return e.send1(ctx, message{str: v, isString: true})
}

func (e *endpoint) ReceiveString(ctx context.Context) (string, error) {
	m, err := e.recv1(ctx)
	if err != nil {
		return "", err
	}
	if !m.isString {
		return "", couplingerrors.New(couplingerrors.ProtocolError, "mock channel: expected string frame")
	}
	return m.str, nil
}

func (e *endpoint) Close() error { return nil }

func (e *endpoint) send1(ctx context.Context, m message) error {
	select {
	case e.send <- m:
		return nil
	case <-ctx.Done():
		return couplingerrors.Wrap(couplingerrors.TransportError, ctx.Err(), "mock channel: send cancelled")
	}
}

func (e *endpoint) recv1(ctx context.Context) (message, error) {
	select {
	case m := <-e.recv:
		return m, nil
	case <-ctx.Done():
		return message{}, couplingerrors.Wrap(couplingerrors.TransportError, ctx.Err(), "mock channel: receive cancelled")
	}
}

var _ comm.Channel = (*endpoint)(nil)

// Communication is the in-process comm.Communication implementation. Create
// a connected pair with NewPair.
type Communication struct {
	mu          sync.Mutex
	self        string
	primaries   map[string]*endpoint
	distributed map[string]*endpoint // key: peer + "#" + rank
	hub         *hub
}

// hub is shared between both Communication endpoints of a pair so they can
// look up or lazily create the pipe for a given (participant,participant)
// channel.
type hub struct {
	mu     sync.Mutex
	pipes  map[string]*pipe // key: sorted "a|b" or "a|b#rank"
}

func newHub() *hub { return &hub{pipes: make(map[string]*pipe)} }

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (h *hub) pipeFor(key string) *pipe {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pipes[key]
	if !ok {
		p = newPipe()
		h.pipes[key] = p
	}
	return p
}

func (h *hub) endpointFor(key, self, peer string) *endpoint {
	p := h.pipeFor(key)
	if self < peer {
		return &endpoint{send: p.aToB, recv: p.bToA}
	}
	return &endpoint{send: p.bToA, recv: p.aToB}
}

// NewPair creates two connected Communication instances representing
// nameA's and nameB's view of the same link.
func NewPair(nameA, nameB string) (a, b *Communication) {
	h := newHub()
	a = &Communication{self: nameA, primaries: make(map[string]*endpoint), distributed: make(map[string]*endpoint), hub: h}
	b = &Communication{self: nameB, primaries: make(map[string]*endpoint), distributed: make(map[string]*endpoint), hub: h}
	return a, b
}

var _ comm.Communication = (*Communication)(nil)

func (c *Communication) AcceptConnection(ctx context.Context, peer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primaries[peer] = c.hub.endpointFor(pairKey(c.self, peer), c.self, peer)
	return nil
}

func (c *Communication) RequestConnection(ctx context.Context, peer, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primaries[peer] = c.hub.endpointFor(pairKey(c.self, peer), c.self, peer)
	return nil
}

func (c *Communication) PreConnectSecondaryRanks(ctx context.Context, peer string, ranks int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for r := 0; r < ranks; r++ {
		key := fmt.Sprintf("%s#%d", pairKey(c.self, peer), r)
		c.distributed[fmt.Sprintf("%s#%d", peer, r)] = c.hub.endpointFor(key, c.self, peer)
	}
	return nil
}

func (c *Communication) Primary(peer string) (comm.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.primaries[peer]
	if !ok {
		ch = c.hub.endpointFor(pairKey(c.self, peer), c.self, peer)
		c.primaries[peer] = ch
	}
	return ch, nil
}

func (c *Communication) Distributed(peer string, rank int) (comm.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("%s#%d", peer, rank)
	ch, ok := c.distributed[id]
	if !ok {
		key := fmt.Sprintf("%s#%d", pairKey(c.self, peer), rank)
		ch = c.hub.endpointFor(key, c.self, peer)
		c.distributed[id] = ch
	}
	return ch, nil
}

func (c *Communication) CloseConnection(peer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.primaries, peer)
	for k := range c.distributed {
		if len(k) >= len(peer) && k[:len(peer)] == peer {
			delete(c.distributed, k)
		}
	}
	return nil
}
