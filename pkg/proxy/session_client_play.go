package proxy

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
	"github.com/dualspiral/velocity/pkg/proto/state"
)

// clientPlaySessionHandler relays a playing client to its current backend
// and applies backend switches on the client side.
type clientPlaySessionHandler struct {
	log    logr.Logger
	player *connectedPlayer
	// spawned is set after the first JoinGame reached the client.
	spawned bool

	nopSessionHandler
}

var _ netmc.SessionHandler = (*clientPlaySessionHandler)(nil)

func newClientPlaySessionHandler(player *connectedPlayer) *clientPlaySessionHandler {
	return &clientPlaySessionHandler{
		log:    player.log.WithName("clientPlay"),
		player: player,
	}
}

func (c *clientPlaySessionHandler) HandlePacket(pc *proto.PacketContext) {
	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		c.handleKeepAlive(p)
	case *plugin.Message:
		c.handlePluginMessage(p)
	default:
		// Unknown packets end up here too, as raw payload.
		if backend := c.backend(); backend != nil {
			_ = backend.Write(pc.Payload)
		}
	}
}

func (c *clientPlaySessionHandler) Disconnected() {
	if !netmc.KnownDisconnect(c.player.MinecraftConn) {
		c.log.Info("player has disconnected")
	}
	c.player.teardown()
}

// backend is the connection to forward to. It is nil while the player has
// no backend, e.g. during a switch.
func (c *clientPlaySessionHandler) backend() netmc.MinecraftConn {
	sc := c.player.connectedServer()
	if sc == nil || !sc.active() {
		return nil
	}
	mc, _ := sc.conn()
	return mc
}

// handleKeepAlive answers the backend's outstanding keep-alive and measures the ping.
// Stale or foreign ids are dropped.
func (c *clientPlaySessionHandler) handleKeepAlive(p *packet.KeepAlive) {
	sc := c.player.connectedServer()
	mc, ok := sc.conn()
	if !ok || !sc.answerPing(p.RandomID) {
		return
	}
	c.player.ping.Store(time.Since(sc.pingSent.Load()))
	_ = mc.WritePacket(p)
}

func (c *clientPlaySessionHandler) handlePluginMessage(p *plugin.Message) {
	if plugin.IsRegister(p) || plugin.IsUnregister(p) {
		c.player.updateChannels(p)
	}
	backend := c.backend()
	if backend == nil {
		return
	}
	if backend.State() != state.Play {
		c.log.Info("dropped plugin message, backend is not playing yet", "channel", p.Channel)
		return
	}
	_ = backend.WritePacket(p)
}

// handleBackendJoinGame shows the JoinGame of a new backend to the client.
// It runs on the client loop.
//
// The first join is forwarded as is. On a switch the client gets the new
// JoinGame followed by a respawn into another dimension and one back into the
// real dimension. Without the detour the client would keep the old world.
// Reusing the backend's JoinGame spares rewriting entity ids.
func (c *clientPlaySessionHandler) handleBackendJoinGame(join *packet.JoinGame) error {
	if !c.spawned {
		c.spawned = true
		if err := c.player.WritePacket(join); err != nil {
			return fmt.Errorf("error writing JoinGame to player: %w", err)
		}
		return nil
	}

	detour := packet.RespawnFromJoinGame(join)
	detour.Dimension = otherDimension(join.Dimension)
	for _, p := range []proto.Packet{join, detour, packet.RespawnFromJoinGame(join)} {
		if err := c.player.BufferPacket(p); err != nil {
			return fmt.Errorf("error buffering %T for server switch: %w", p, err)
		}
	}
	if err := c.player.Flush(); err != nil {
		return fmt.Errorf("error flushing server switch packets: %w", err)
	}
	return nil
}

// otherDimension returns a dimension distinct from dim.
func otherDimension(dim int) int {
	if dim == 0 {
		return -1
	}
	return 0
}
