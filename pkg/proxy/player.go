package proxy

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/zyedidia/generic/mapset"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"

	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/permission"
	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// Player is a client that finished login and plays through the proxy.
type Player interface {
	Inbound
	netmc.PacketWriter
	permission.Subject

	ID() uuid.UUID
	Username() string
	GameProfile() profile.GameProfile
	// OnlineMode reports whether the session server verified the player.
	OnlineMode() bool
	// Ping is the round trip of the last keep-alive, -1 before the first one.
	Ping() time.Duration

	// CurrentServer is the backend the player plays on. It is nil before the
	// first join and while a lost backend is being replaced.
	CurrentServer() ServerConnection
	CreateConnectionRequest(target RegisteredServer) ConnectionRequest
	// KnownChannels lists the plugin channels the client registered, sorted.
	KnownChannels() []string

	// Disconnect kicks the player with reason. The player is unusable afterwards.
	Disconnect(reason component.Component)
	// SendMessage shows msg in the player's chat.
	SendMessage(msg component.Component) error
	// SendPluginMessage sends a plugin message to the client. Use
	// CurrentServer().SendPluginMessage to reach the backend instead.
	SendPluginMessage(channel string, data []byte) error
}

// ErrEmptyChannel is returned for plugin messages without a channel.
var ErrEmptyChannel = errors.New("channel must not be empty")

type connectedPlayer struct {
	netmc.MinecraftConn
	*sessionHandlerDeps

	log         logr.Logger
	profile     *profile.GameProfile
	virtualHost net.Addr
	onlineMode  bool
	permFunc    permission.Func // set before the player is published
	ping        atomic.Duration
	// duplicate is set when the login was refused because the same
	// profile is already online.
	duplicate atomic.Bool

	mu sync.RWMutex
	// connectedServer_ is only replaced on the client loop and read anywhere.
	connectedServer_ *serverConnection
	connInFlight     *serverConnection
	attempted        mapset.Set[string] // try list entries used since the last join
	knownChannels    mapset.Set[string]
}

var _ Player = (*connectedPlayer)(nil)

func newConnectedPlayer(
	conn netmc.MinecraftConn,
	gameProfile *profile.GameProfile,
	virtualHost net.Addr,
	onlineMode bool,
	permFunc permission.Func,
	deps *sessionHandlerDeps,
) *connectedPlayer {
	p := &connectedPlayer{
		MinecraftConn:      conn,
		sessionHandlerDeps: deps,
		log: logr.FromContextOrDiscard(conn.Context()).WithName("player").
			WithValues("name", gameProfile.Name, "id", gameProfile.ID),
		profile:       gameProfile,
		virtualHost:   virtualHost,
		onlineMode:    onlineMode,
		permFunc:      permFunc,
		attempted:     mapset.New[string](),
		knownChannels: mapset.New[string](),
	}
	p.ping.Store(-1)
	return p
}

func (p *connectedPlayer) ID() uuid.UUID                    { return p.profile.ID }
func (p *connectedPlayer) Username() string                 { return p.profile.Name }
func (p *connectedPlayer) String() string                   { return p.profile.Name }
func (p *connectedPlayer) GameProfile() profile.GameProfile { return *p.profile }
func (p *connectedPlayer) OnlineMode() bool                 { return p.onlineMode }
func (p *connectedPlayer) Ping() time.Duration              { return p.ping.Load() }
func (p *connectedPlayer) VirtualHost() net.Addr            { return p.virtualHost }
func (p *connectedPlayer) Active() bool                     { return !netmc.Closed(p.MinecraftConn) }
func (p *connectedPlayer) Closed() <-chan struct{}          { return p.Context().Done() }
func (p *connectedPlayer) HasPermission(perm string) bool   { return p.PermissionValue(perm).Bool() }
func (p *connectedPlayer) PermissionValue(perm string) permission.TriState {
	return p.permFunc(perm)
}

func (p *connectedPlayer) CurrentServer() ServerConnection {
	if sc := p.connectedServer(); sc != nil {
		return sc
	}
	return nil // not a typed nil
}

func (p *connectedPlayer) connectedServer() *serverConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connectedServer_
}

func (p *connectedPlayer) Disconnect(reason component.Component) {
	if !p.Active() {
		return
	}
	if reason == nil {
		reason = &component.Text{}
	}
	if netmc.CloseWith(p.MinecraftConn, packet.DisconnectWith(reason, p.Protocol())) == nil {
		p.log.Info("player has been disconnected", "reason", util.MarshalPlain(reason))
	}
}

func (p *connectedPlayer) SendMessage(msg component.Component) error {
	if msg == nil {
		return nil
	}
	chat, err := packet.ChatWith(msg, p.Protocol())
	if err != nil {
		return err
	}
	return p.WritePacket(chat)
}

func (p *connectedPlayer) SendPluginMessage(channel string, data []byte) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	return p.WritePacket(&plugin.Message{Channel: channel, Data: data})
}

func (p *connectedPlayer) KnownChannels() []string {
	var channels []string
	p.mu.RLock()
	p.knownChannels.Each(func(c string) { channels = append(channels, c) })
	p.mu.RUnlock()
	sort.Strings(channels)
	return channels
}

// updateChannels applies a register or unregister message of the client.
func (p *connectedPlayer) updateChannels(m *plugin.Message) {
	channels := plugin.Channels(m)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range channels {
		if plugin.IsRegister(m) {
			p.knownChannels.Put(c)
		} else {
			p.knownChannels.Remove(c)
		}
	}
}

// onLoop runs fn on the client loop and waits for it. It reports false if
// the player left first. Calling it on the client loop deadlocks.
func (p *connectedPlayer) onLoop(fn func()) bool {
	done := make(chan struct{})
	if !p.Exec(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-p.Closed():
		return false
	}
}

// detachServer takes the player off their backend, or only off it if it is
// only. It returns the dropped connection. Run it on the client loop.
func (p *connectedPlayer) detachServer(only RegisteredServer) *serverConnection {
	p.mu.Lock()
	sc := p.connectedServer_
	if sc == nil || (only != nil && !RegisteredServerEqual(sc.server, only)) {
		p.mu.Unlock()
		return nil
	}
	p.connectedServer_ = nil
	p.mu.Unlock()
	sc.server.players.remove(p)
	sc.disconnect()
	return sc
}

// joined makes sc the player's backend. Run it on the client loop.
func (p *connectedPlayer) joined(sc *serverConnection) {
	p.mu.Lock()
	p.connectedServer_ = sc
	p.attempted.Clear()
	if p.connInFlight == sc {
		p.connInFlight = nil
	}
	p.mu.Unlock()
	sc.server.players.add(p)
	sc.completeJoin()
}

// nextServerToTry walks the try list and returns the first registered server
// the player did not attempt since their last join, skipping current and
// any backend they are on or moving to. It returns nil when the list is used up.
func (p *connectedPlayer) nextServerToTry(current RegisteredServer) RegisteredServer {
	p.mu.Lock()
	defer p.mu.Unlock()
	skip := func(name string) bool {
		for _, rs := range []RegisteredServer{current, p.connectedServer_.registered(), p.connInFlight.registered()} {
			if rs != nil && rs.ServerInfo().Name() == name {
				return true
			}
		}
		return p.attempted.Has(name)
	}
	for _, name := range p.config().Try {
		if skip(name) {
			continue
		}
		if rs := p.proxy.Server(name); rs != nil {
			p.attempted.Put(name)
			return rs
		}
	}
	return nil
}

// teardown runs on the client loop once the connection closed. It drops the
// backend connections and reports how the session ended.
func (p *connectedPlayer) teardown() {
	p.mu.Lock()
	inFlight := p.connInFlight
	p.connInFlight = nil
	p.mu.Unlock()
	if inFlight != nil {
		inFlight.disconnect()
	}
	p.detachServer(nil)

	status := CanceledByUserLoginStatus
	switch {
	case p.players.Remove(p):
		status = SuccessfulLoginStatus
	case p.duplicate.Load():
		status = ConflictingLoginStatus
	case netmc.KnownDisconnect(p.MinecraftConn):
		status = CanceledByProxyLoginStatus
	}
	p.log.V(1).Info("player torn down", "loginStatus", status)
	p.eventMgr.Fire(&DisconnectEvent{playerEvent: playerEvent{p}, loginStatus: status})
}
