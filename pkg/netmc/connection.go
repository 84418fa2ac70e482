// Package netmc owns the socket of one Minecraft connection, client or
// backend, and serializes everything that happens on it through one loop
// goroutine.
package netmc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/errs"
)

var (
	// ErrClosedConn is returned by operations on a closed connection.
	ErrClosedConn = errors.New("connection is closed")
	// ErrEncryptionEnabled is returned when encryption is enabled twice.
	ErrEncryptionEnabled = errors.New("encryption is already enabled")
)

// MinecraftConn is one framed Minecraft connection.
//
// Packets are handed to the SessionHandler on the connection's loop, one at a
// time. Any other goroutine that wants to touch session state of the
// connection posts a func with Exec.
type MinecraftConn interface {
	// Context is canceled once the connection is closed.
	Context() context.Context
	// Close closes the socket and runs SessionHandler.Disconnected on the loop.
	// Only the first call has an effect.
	Close() error
	ID() string

	State() *state.Registry
	Protocol() proto.Protocol
	RemoteAddr() net.Addr
	LocalAddr() net.Addr
	Type() ConnectionType
	SetType(ConnectionType)

	SessionHandler() SessionHandler
	// SetSessionHandler deactivates the current handler and activates h.
	// Call it on the loop, or before the loop started.
	SetSessionHandler(h SessionHandler)

	// SetAutoReading pauses or resumes reading frames after the one
	// being dispatched.
	SetAutoReading(bool)
	// Exec runs fn on the loop after everything posted before it.
	// It reports false and drops fn once the connection is closed.
	Exec(fn func()) bool

	StateChanger
	PacketWriter
}

// PacketWriter writes to a connection. Any write error closes it.
type PacketWriter interface {
	// WritePacket encodes p and flushes.
	WritePacket(p proto.Packet) error
	// Write frames an already encoded body (id and data) and flushes.
	Write(payload []byte) error
	// BufferPacket encodes p without flushing.
	BufferPacket(p proto.Packet) error
	Flush() error
}

// StateChanger switches how frames are interpreted. Changes apply from the next frame on.
type StateChanger interface {
	SetProtocol(proto.Protocol)
	SetState(*state.Registry)
	// SetCompressionThreshold applies to both directions. A negative threshold disables compression.
	SetCompressionThreshold(threshold int) error
	// EnableEncryption turns on AES/CFB8 with secret. It fails on the second call.
	EnableEncryption(secret []byte) error
}

// SessionHandler reacts to one phase of a connection. Every method runs on the loop.
type SessionHandler interface {
	HandlePacket(pc *proto.PacketContext)
	Disconnected()
	Activated()
	Deactivated()
}

// NewMinecraftConn wraps base. direction is the direction of packets the
// proxy receives: ServerBound for clients, ClientBound for backends. The
// returned run func blocks until the connection closed and the handler saw
// Disconnected.
func NewMinecraftConn(
	ctx context.Context,
	base net.Conn,
	direction proto.Direction,
	readTimeout time.Duration,
	writeTimeout time.Duration,
	compressionLevel int,
) (conn MinecraftConn, run func()) {
	out, name := proto.ClientBound, "client"
	if direction == proto.ClientBound {
		out, name = proto.ServerBound, "server"
	}

	id := xid.New().String()
	log := logr.FromContextOrDiscard(ctx).WithName(name).WithValues("connID", id)
	ctx, cancel := context.WithCancel(logr.NewContext(ctx, log))

	c := &minecraftConn{
		id:          id,
		base:        base,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		in:          newFrameReader(base, direction, readTimeout, log),
		out:         newFrameWriter(base, out, writeTimeout, compressionLevel, log),
		interceptor: NewTelemetryInterceptor(log),
		tasks:       newMailbox(),
		protocol:    version.MinimumVersion.Protocol,
		state:       state.Handshake,
	}
	return c, c.run
}

type minecraftConn struct {
	id          string
	base        net.Conn
	log         logr.Logger
	in          *frameReader
	out         *frameWriter
	interceptor PacketInterceptor
	tasks       *mailbox
	reading     readGate

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	expected  atomic.Bool // the close was initiated by the proxy
	encrypted atomic.Bool

	mu       sync.RWMutex
	protocol proto.Protocol
	state    *state.Registry
	connType ConnectionType
	handler  SessionHandler
}

func (c *minecraftConn) Context() context.Context { return c.ctx }
func (c *minecraftConn) ID() string               { return c.id }
func (c *minecraftConn) RemoteAddr() net.Addr     { return c.base.RemoteAddr() }
func (c *minecraftConn) LocalAddr() net.Addr      { return c.base.LocalAddr() }

func (c *minecraftConn) Exec(fn func()) bool {
	return !Closed(c) && c.tasks.post(fn)
}

func (c *minecraftConn) SetAutoReading(on bool) { c.reading.set(on) }

func (c *minecraftConn) Protocol() proto.Protocol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protocol
}

func (c *minecraftConn) State() *state.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *minecraftConn) Type() ConnectionType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connType
}

func (c *minecraftConn) SessionHandler() SessionHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

func (c *minecraftConn) SetProtocol(p proto.Protocol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protocol = p
	c.in.dec.SetProtocol(p)
	c.out.enc.SetProtocol(p)
}

func (c *minecraftConn) SetState(s *state.Registry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
	c.in.dec.SetState(s)
	c.out.enc.SetState(s)
}

func (c *minecraftConn) SetType(t ConnectionType) {
	c.mu.Lock()
	c.connType = t
	c.mu.Unlock()
}

func (c *minecraftConn) SetSessionHandler(h SessionHandler) {
	c.mu.Lock()
	prev := c.handler
	c.handler = h
	c.mu.Unlock()
	if prev != nil {
		prev.Deactivated()
	}
	h.Activated()
}

func (c *minecraftConn) SetCompressionThreshold(threshold int) error {
	c.log.V(1).Info("compression threshold changed", "threshold", threshold)
	c.in.dec.SetCompressionThreshold(threshold)
	return c.out.setCompression(threshold)
}

func (c *minecraftConn) EnableEncryption(secret []byte) error {
	if !c.encrypted.CompareAndSwap(false, true) {
		return ErrEncryptionEnabled
	}
	if err := c.in.encrypt(secret); err != nil {
		return err
	}
	return c.out.encrypt(secret)
}

func (c *minecraftConn) WritePacket(p proto.Packet) error {
	if err := c.BufferPacket(p); err != nil {
		return err
	}
	return c.Flush()
}

func (c *minecraftConn) Write(payload []byte) error {
	if Closed(c) {
		return ErrClosedConn
	}
	if _, err := c.out.enc.Write(payload); err != nil {
		return c.failWrite(err)
	}
	return c.Flush()
}

func (c *minecraftConn) BufferPacket(p proto.Packet) error {
	if Closed(c) {
		return ErrClosedConn
	}
	if _, err := c.out.enc.WritePacket(p); err != nil {
		return c.failWrite(err)
	}
	return nil
}

func (c *minecraftConn) Flush() error {
	if err := c.out.flush(); err != nil {
		return c.failWrite(err)
	}
	return nil
}

// failWrite closes the connection and returns err.
func (c *minecraftConn) failWrite(err error) error {
	_ = c.Close()
	var opErr *net.OpError
	quiet := errors.Is(err, ErrClosedConn) || (errors.As(err, &opErr) && errs.IsConnClosedErr(opErr.Err))
	if !quiet {
		c.log.V(1).Info("write failed, connection closed", "error", err)
	}
	return err
}

func (c *minecraftConn) Close() error { return c.shutdown(true) }

// shutdown closes the connection once. expected is false when the peer or
// an error ended it.
func (c *minecraftConn) shutdown(expected bool) error {
	err := ErrClosedConn
	c.closeOnce.Do(func() {
		if expected {
			c.expected.Store(true)
		}
		c.cancel()
		err = c.base.Close()
		c.tasks.close(func() {
			if h := c.SessionHandler(); h != nil {
				h.Disconnected()
			}
		})
	})
	return err
}

// Closed reports whether c was closed.
func Closed(c interface{ Context() context.Context }) bool {
	return c.Context().Err() != nil
}

// CloseWith writes p, usually a Disconnect, and closes c.
func CloseWith(c MinecraftConn, p proto.Packet) error {
	if Closed(c) {
		return ErrClosedConn
	}
	if mc, ok := c.(*minecraftConn); ok {
		mc.expected.Store(true)
	}
	_ = c.WritePacket(p)
	return c.Close()
}

// KnownDisconnect reports whether the proxy itself closed c.
func KnownDisconnect(c MinecraftConn) bool {
	mc, ok := c.(*minecraftConn)
	return ok && mc.expected.Load()
}
