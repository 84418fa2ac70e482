package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/future"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/util/netutil"
)

// ServerConnection is the link of one player to one backend server.
type ServerConnection interface {
	Server() RegisteredServer
	Player() Player
	// SendPluginMessage writes to the backend. It returns
	// ErrBackendNotPlaying while the player still logs in there.
	SendPluginMessage(channel string, data []byte) error
}

// ErrBackendNotPlaying is returned by ServerConnection.SendPluginMessage
// before the backend login completed.
var ErrBackendNotPlaying = errors.New("backend server connection is not in play state")

// serverConnection dials a backend for a player, logs the player in and
// holds the backend MinecraftConn until one side leaves.
type serverConnection struct {
	server *registeredServer
	player *connectedPlayer
	log    logr.Logger

	joined   atomic.Bool // the client saw this server's JoinGame
	graceful atomic.Bool // closed by the proxy, not by the backend
	// pendingPing is the id of the backend keep-alive the client has not
	// answered yet, or -1.
	pendingPing atomic.Int64
	pingSent    atomic.Time

	mu sync.RWMutex
	mc netmc.MinecraftConn // nil before dialing and after disconnect
}

var _ ServerConnection = (*serverConnection)(nil)

func newServerConnection(server *registeredServer, player *connectedPlayer) *serverConnection {
	s := &serverConnection{
		server: server,
		player: player,
		log:    player.log.WithName("backend").WithValues("server", server.info.Name()),
	}
	s.pendingPing.Store(-1)
	return s
}

func (s *serverConnection) Server() RegisteredServer { return s.server }
func (s *serverConnection) Player() Player           { return s.player }

func (s *serverConnection) String() string {
	return fmt.Sprintf("%s on %s", s.player, s.server.info.Name())
}

func (s *serverConnection) config() *config.Config { return s.player.config() }

// registered is nil for a nil s.
func (s *serverConnection) registered() RegisteredServer {
	if s == nil {
		return nil
	}
	return s.server
}

// conn returns the backend connection unless s is nil or torn down.
func (s *serverConnection) conn() (netmc.MinecraftConn, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mc, s.mc != nil
}

func (s *serverConnection) SendPluginMessage(channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	mc, ok := s.conn()
	switch {
	case !ok:
		return netmc.ErrClosedConn
	case mc.State() != state.Play:
		return ErrBackendNotPlaying
	}
	return mc.WritePacket(&plugin.Message{Channel: channel, Data: data})
}

// active is false once the backend, the player or the proxy let go.
func (s *serverConnection) active() bool {
	mc, ok := s.conn()
	return ok && !netmc.Closed(mc) && !s.graceful.Load() && s.player.Active()
}

func (s *serverConnection) disconnect() {
	s.mu.Lock()
	mc := s.mc
	s.mc = nil
	s.mu.Unlock()
	if mc != nil {
		s.graceful.Store(true)
		_ = mc.Close()
	}
}

func (s *serverConnection) completeJoin() {
	if s.joined.CompareAndSwap(false, true) {
		s.log.V(1).Info("player joined backend")
	}
}

// answerPing reports whether id is the pending backend keep-alive and
// clears it.
func (s *serverConnection) answerPing(id int64) bool {
	return s.pendingPing.CompareAndSwap(id, -1)
}

// connResponse ends a backend login. Exactly one field is set.
type connResponse struct {
	*connectionResult
	error
}

// connect dials the backend and waits until the login there is decided
// or ctx is done.
func (s *serverConnection) connect(ctx context.Context) (*connectionResult, error) {
	cfg := s.config()
	dialer := net.Dialer{Timeout: time.Duration(cfg.ConnectionTimeout) * time.Millisecond}
	conn, err := dialer.DialContext(ctx, "tcp", s.server.info.Addr().String())
	if err != nil {
		return nil, fmt.Errorf("error connecting to server %q: %w", s.server.info.Name(), err)
	}
	s.log.V(1).Info("dialed backend", "addr", conn.RemoteAddr())

	mc, run := netmc.NewMinecraftConn(
		logr.NewContext(context.Background(), s.log),
		conn,
		proto.ClientBound,
		time.Duration(cfg.ReadTimeout)*time.Millisecond,
		time.Duration(cfg.ConnectionTimeout)*time.Millisecond,
		cfg.Compression.Level,
	)
	response := future.NewChan[*connResponse]()
	mc.SetSessionHandler(newBackendLoginSessionHandler(s, response))
	s.mu.Lock()
	s.mc = mc
	s.mu.Unlock()

	if err = s.beginLogin(mc); err != nil {
		s.disconnect()
		return nil, fmt.Errorf("error starting login at server %q: %w", s.server.info.Name(), err)
	}
	go run()

	resp, err := response.Get(ctx)
	if err != nil {
		s.disconnect()
		return nil, fmt.Errorf("error logging into backend server %q: %w", s.server.info.Name(), err)
	}
	return resp.connectionResult, resp.error
}

// beginLogin sends the Handshake in the handshake state, then ServerLogin
// in the login state, both with the client's protocol.
func (s *serverConnection) beginLogin(mc netmc.MinecraftConn) error {
	protocol := s.player.Protocol()
	addr := s.server.info.Addr()
	err := mc.BufferPacket(&packet.Handshake{
		ProtocolVersion: int(protocol),
		ServerAddress:   s.handshakeAddr(),
		Port:            int(netutil.Port(addr)),
		NextStatus:      int(state.LoginState),
	})
	if err != nil {
		return err
	}
	mc.SetProtocol(protocol)
	mc.SetState(state.Login)
	return mc.WritePacket(&packet.ServerLogin{Username: s.player.Username()})
}

// handshakeAddr is the server address written into the backend Handshake.
// Legacy forwarding packs the player's address and profile into it. Legacy
// Forge clients keep their FML marker in every other mode.
func (s *serverConnection) handshakeAddr() string {
	host := netutil.Host(s.server.info.Addr())
	switch {
	case s.config().Forwarding.Mode == config.LegacyForwardingMode:
		return createLegacyForwardingAddress(host, netutil.Host(s.player.RemoteAddr()), s.player.profile)
	case s.player.Type() == netmc.LegacyForge:
		return host + legacyForgeHandshakeToken
	}
	return host
}
