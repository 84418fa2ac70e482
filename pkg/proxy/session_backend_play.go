package proxy

import (
	"time"

	"go.uber.org/atomic"

	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
)

// brandName is appended to the brand a backend server reports to the client.
const brandName = "Velocity"

// backendPlaySessionHandler relays a backend the player plays on to the client.
type backendPlaySessionHandler struct {
	serverConn *serverConnection
	// kicked is set once the backend sent Disconnect, so the close that
	// follows is not treated as a crash.
	kicked atomic.Bool

	nopSessionHandler
}

var _ netmc.SessionHandler = (*backendPlaySessionHandler)(nil)

func newBackendPlaySessionHandler(serverConn *serverConnection) netmc.SessionHandler {
	return &backendPlaySessionHandler{serverConn: serverConn}
}

func (b *backendPlaySessionHandler) HandlePacket(pc *proto.PacketContext) {
	sc := b.serverConn
	if !sc.active() {
		// The player moved on or left.
		sc.disconnect()
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		sc.pingSent.Store(time.Now())
		sc.pendingPing.Store(p.RandomID)
		_ = sc.player.Write(pc.Payload)
	case *packet.Disconnect:
		b.kicked.Store(true)
		sc.disconnect()
		// Recovery may dial another backend.
		go sc.player.handleDisconnect(sc.server, p, true)
	case *plugin.Message:
		if plugin.McBrand(p) {
			_ = sc.player.WritePacket(plugin.RewriteMinecraftBrand(p, brandName))
			return
		}
		_ = sc.player.Write(pc.Payload)
	default:
		// Known or not, the encoded payload is forwarded as is.
		_ = sc.player.Write(pc.Payload)
	}
}

func (b *backendPlaySessionHandler) Disconnected() {
	sc := b.serverConn
	sc.server.players.remove(sc.player)
	if sc.graceful.Load() || b.kicked.Load() {
		return
	}
	go sc.player.handleDisconnectWithReason(sc.server, internalServerConnectionError, true)
}
