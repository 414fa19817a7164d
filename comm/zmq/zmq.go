//go:build zmq
// +build zmq

// Package zmq implements comm.Communication over ZeroMQ PAIR sockets: one
// socket per primary-rank connection, one per distributed (secondary-rank)
// connection, each used point-to-point (ordered, reliable, one peer per
// channel).
package zmq

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"

	zmq4 "github.com/go-zeromq/zmq4"

	"github.com/meshcouple/coupler/comm"
	"github.com/meshcouple/coupler/couplingerrors"
)

const (
	tagScalar byte = iota
	tagBool
	tagBuffer
	tagString
)

// Communication is the ZeroMQ-backed comm.Communication implementation. One
// instance serves one participant rank; AcceptConnection and
// RequestConnection each open a distinct PAIR socket, binding one socket
// per role instead of multiplexing roles over a single one.
type Communication struct {
	listenAddr string

	mu          sync.Mutex
	primary     map[string]*channel
	distributed map[string]*channel
	nextPort    int
}

// NewCommunication creates a Communication whose AcceptConnection calls bind
// on listenAddr (e.g. "tcp://0.0.0.0:51717"); ports for secondary-rank
// sockets are allocated by incrementing the listenAddr's port.
func NewCommunication(listenAddr string) *Communication {
	return &Communication{
		listenAddr:  listenAddr,
		primary:     make(map[string]*channel),
		distributed: make(map[string]*channel),
	}
}

var _ comm.Communication = (*Communication)(nil)

func (c *Communication) AcceptConnection(ctx context.Context, peer string) error {
	ch, err := bind(ctx, c.listenAddr)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err,
			"zmq: accept connection from %q", peer)
	}
	c.mu.Lock()
	c.primary[peer] = ch
	c.mu.Unlock()
	return nil
}

func (c *Communication) RequestConnection(ctx context.Context, peer, address string) error {
	ch, err := dial(ctx, address)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err,
			"zmq: request connection to %q at %s", peer, address)
	}
	c.mu.Lock()
	c.primary[peer] = ch
	c.mu.Unlock()
	return nil
}

// PreConnectSecondaryRanks binds one additional PAIR socket per secondary
// rank, on successive ports after the primary listen address, for the
// matching remote rank to dial. It returns once every socket is listening;
// it does not wait for the remote ranks to connect.
func (c *Communication) PreConnectSecondaryRanks(ctx context.Context, peer string, ranks int) error {
	host, port, err := splitAddr(c.listenAddr)
	if err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "zmq: pre-connect secondary ranks")
	}
	for r := 0; r < ranks; r++ {
		addr := fmt.Sprintf("tcp://%s:%d", host, port+1+r)
		ch, err := bind(ctx, addr)
		if err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err,
				"zmq: pre-connect rank %d of %q", r, peer)
		}
		c.mu.Lock()
		c.distributed[key(peer, r)] = ch
		c.mu.Unlock()
	}
	return nil
}

func (c *Communication) Primary(peer string) (comm.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.primary[peer]
	if !ok {
		return nil, couplingerrors.New(couplingerrors.ProtocolError, "zmq: no primary channel to %q", peer)
	}
	return ch, nil
}

func (c *Communication) Distributed(peer string, rank int) (comm.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.distributed[key(peer, rank)]
	if !ok {
		return nil, couplingerrors.New(couplingerrors.ProtocolError,
			"zmq: no distributed channel to %q rank %d", peer, rank)
	}
	return ch, nil
}

func (c *Communication) CloseConnection(peer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	if ch, ok := c.primary[peer]; ok {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.primary, peer)
	}
	for k, ch := range c.distributed {
		if peerOf(k) == peer {
			if err := ch.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			delete(c.distributed, k)
		}
	}
	return firstErr
}

func key(peer string, rank int) string { return fmt.Sprintf("%s#%d", peer, rank) }

func peerOf(k string) string {
	if i := strings.LastIndex(k, "#"); i >= 0 {
		return k[:i]
	}
	return k
}

func splitAddr(addr string) (host string, port int, err error) {
	hostPort, ok := strings.CutPrefix(addr, "tcp://")
	if !ok {
		return "", 0, couplingerrors.New(couplingerrors.ConfigurationError, "zmq: malformed address %q", addr)
	}
	h, p, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", 0, couplingerrors.New(couplingerrors.ConfigurationError, "zmq: malformed address %q", addr)
	}
	if port, err = strconv.Atoi(p); err != nil {
		return "", 0, couplingerrors.New(couplingerrors.ConfigurationError, "zmq: malformed address %q", addr)
	}
	return h, port, nil
}

// channel is a single PAIR socket implementing comm.Channel with a tagged,
// length-prefixed binary frame format: [tag byte][payload].
type channel struct {
	sock zmq4.Socket
	mu   sync.Mutex
}

func bind(ctx context.Context, addr string) (*channel, error) {
	sock := zmq4.NewPair(ctx)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return &channel{sock: sock}, nil
}

func dial(ctx context.Context, addr string) (*channel, error) {
	sock := zmq4.NewPair(ctx)
	if err := sock.Dial(addr); err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &channel{sock: sock}, nil
}

var _ comm.Channel = (*channel)(nil)

func (c *channel) send(ctx context.Context, buf []byte) error {
	done := make(chan error, 1)
	go func() { done <- c.sock.Send(zmq4.NewMsg(buf)) }()
	select {
	case err := <-done:
		if err != nil {
			return couplingerrors.Wrap(couplingerrors.TransportError, err, "zmq: send")
		}
		return nil
	case <-ctx.Done():
		return couplingerrors.Wrap(couplingerrors.TransportError, ctx.Err(), "zmq: send cancelled")
	}
}

func (c *channel) recv(ctx context.Context) ([]byte, error) {
	type result struct {
		msg zmq4.Msg
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.sock.Recv()
		done <- result{msg, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, couplingerrors.Wrap(couplingerrors.TransportError, r.err, "zmq: receive")
		}
		return r.msg.Bytes(), nil
	case <-ctx.Done():
		return nil, couplingerrors.Wrap(couplingerrors.TransportError, ctx.Err(), "zmq: receive cancelled")
	}
}

func (c *channel) SendScalar(ctx context.Context, v float64) error {
	buf := make([]byte, 9)
	buf[0] = tagScalar
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v))
	return c.send(ctx, buf)
}

func (c *channel) ReceiveScalar(ctx context.Context) (float64, error) {
	buf, err := c.recv(ctx)
	if err != nil {
		return 0, err
	}
	if len(buf) != 9 || buf[0] != tagScalar {
		return 0, couplingerrors.New(couplingerrors.ProtocolError, "zmq: expected scalar frame")
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[1:])), nil
}

func (c *channel) SendBool(ctx context.Context, v bool) error {
	buf := make([]byte, 2)
	buf[0] = tagBool
	if v {
		buf[1] = 1
	}
	return c.send(ctx, buf)
}

func (c *channel) ReceiveBool(ctx context.Context) (bool, error) {
	buf, err := c.recv(ctx)
	if err != nil {
		return false, err
	}
	if len(buf) != 2 || buf[0] != tagBool {
		return false, couplingerrors.New(couplingerrors.ProtocolError, "zmq: expected bool frame")
	}
	return buf[1] != 0, nil
}

func (c *channel) SendString(ctx context.Context, v string) error {
	payload := []byte(v)
	buf := make([]byte, 1+len(payload))
	buf[0] = tagString
	copy(buf[1:], payload)
	return c.send(ctx, buf)
}

func (c *channel) ReceiveString(ctx context.Context) (string, error) {
	buf, err := c.recv(ctx)
	if err != nil {
		return "", err
	}
	if len(buf) < 1 || buf[0] != tagString {
		return "", couplingerrors.New(couplingerrors.ProtocolError, "zmq: expected string frame")
	}
	return string(buf[1:]), nil
}

func (c *channel) SendBuffer(ctx context.Context, kind comm.Kind, values []float64) error {
	buf := make([]byte, 1+4+4+8*len(values))
	buf[0] = tagBuffer
	binary.BigEndian.PutUint32(buf[1:5], uint32(kind))
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(values)))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[9+8*i:], math.Float64bits(v))
	}
	return c.send(ctx, buf)
}

func (c *channel) ReceiveBuffer(ctx context.Context, kind comm.Kind, n int) ([]float64, error) {
	buf, err := c.recv(ctx)
	if err != nil {
		return nil, err
	}
	if len(buf) < 9 || buf[0] != tagBuffer {
		return nil, couplingerrors.New(couplingerrors.ProtocolError, "zmq: expected buffer frame")
	}
	gotKind := comm.Kind(binary.BigEndian.Uint32(buf[1:5]))
	gotLen := int(binary.BigEndian.Uint32(buf[5:9]))
	if gotKind != kind {
		return nil, couplingerrors.New(couplingerrors.ProtocolError,
			"zmq: expected buffer of kind %v, got %v", kind, gotKind)
	}
	if gotLen != n {
		return nil, couplingerrors.New(couplingerrors.ProtocolError,
			"zmq: expected buffer of length %d, got %d", n, gotLen)
	}
	if len(buf) != 9+8*gotLen {
		return nil, couplingerrors.New(couplingerrors.ProtocolError, "zmq: truncated buffer frame")
	}
	values := make([]float64, gotLen)
	for i := range values {
		values[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[9+8*i:]))
	}
	return values, nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sock.Close(); err != nil {
		return couplingerrors.Wrap(couplingerrors.TransportError, err, "zmq: close")
	}
	return nil
}
