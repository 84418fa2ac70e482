package proxy

import (
	"encoding/json"

	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/modinfo"
)

// statusSessionHandler answers one server list ping: a StatusRequest, then
// an optional StatusPing after which the connection is closed.
type statusSessionHandler struct {
	*sessionHandlerDeps

	conn     netmc.MinecraftConn
	inbound  Inbound
	log      logr.Logger
	answered bool

	nopSessionHandler
}

func newStatusSessionHandler(conn netmc.MinecraftConn, inbound Inbound, deps *sessionHandlerDeps) netmc.SessionHandler {
	return &statusSessionHandler{
		sessionHandlerDeps: deps,
		conn:               conn,
		inbound:            inbound,
		log: logr.FromContextOrDiscard(conn.Context()).WithName("status").
			WithValues("inbound", inbound, "protocol", conn.Protocol()),
	}
}

func (h *statusSessionHandler) HandlePacket(pc *proto.PacketContext) {
	switch pc.Packet.(type) {
	case *packet.StatusRequest:
		if h.answered {
			_ = h.conn.Close()
			return
		}
		h.answered = true
		h.respond()
	case *packet.StatusPing:
		// Echo the payload and be done.
		if err := h.conn.Write(pc.Payload); err != nil {
			h.log.V(1).Info("unable to answer status ping", "error", err)
		}
		_ = h.conn.Close()
	default:
		_ = h.conn.Close()
	}
}

var versionName = "Velocity " + version.SupportedVersionsString

// newInitialPing is the response before PingEvent subscribers had their say.
// Clients outside the supported range are shown the newest version.
func newInitialPing(p *Proxy, protocol proto.Protocol) *ServerPing {
	if !version.Protocol(protocol).Supported() {
		protocol = version.MaximumVersion.Protocol
	}
	ping := &ServerPing{
		Version: PingVersion{Protocol: protocol, Name: versionName},
		Players: &PingPlayers{Online: p.PlayerCount(), Max: p.cfg.Status.ShowMaxPlayers},
		Favicon: string(p.favicon),
	}
	if p.cfg.AnnounceForge {
		ping.ModInfo = modinfo.Default
	}
	if p.motd != nil {
		ping.Description = p.motd
	}
	return ping
}

func (h *statusSessionHandler) respond() {
	cached, err := h.proxy.statusCache.Get(h.conn.Protocol())
	if err != nil {
		h.log.Error(err, "unable to build ping response")
		_ = h.conn.Close()
		return
	}
	// Subscribers get their own copy of what they are likely to edit.
	ping := *cached
	if cached.Players != nil {
		players := *cached.Players
		ping.Players = &players
	}

	// The StatusPing must wait for the response.
	h.conn.SetAutoReading(false)
	fireThen(h.eventMgr, h.conn, &PingEvent{inboundEvent{h.inbound}, &ping}, func(e *PingEvent) {
		h.conn.SetAutoReading(true)
		if e.Ping() == nil {
			h.log.V(1).Info("ping response removed by event subscriber, closing connection")
			_ = h.conn.Close()
			return
		}
		body, err := json.Marshal(e.Ping())
		if err != nil {
			h.log.Error(err, "unable to marshal ping response")
			_ = h.conn.Close()
			return
		}
		_ = h.conn.WritePacket(&packet.StatusResponse{Status: string(body)})
	})
}
