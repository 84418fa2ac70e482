package proxy

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"
	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/auth"
	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/addrquota"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/netutil"
)

// legacyForgeHandshakeToken ends the handshake address of Forge clients before 1.13.
const legacyForgeHandshakeToken = "\x00FML\x00"

// sessionHandlerDeps is what every session handler of the proxy shares.
type sessionHandlerDeps struct {
	proxy         *Proxy
	players       *playerDirectory
	eventMgr      event.Manager
	cfg           *config.Config
	authenticator auth.Authenticator
	loginsQuota   *addrquota.Quota // nil disables the login rate limit
}

func (d *sessionHandlerDeps) config() *config.Config { return d.cfg }

// handshakeSessionHandler waits for the Handshake of a new client and hands
// the connection to the status or the login handler.
type handshakeSessionHandler struct {
	*sessionHandlerDeps

	conn netmc.MinecraftConn
	log  logr.Logger

	nopSessionHandler
}

func newHandshakeSessionHandler(conn netmc.MinecraftConn, deps *sessionHandlerDeps) netmc.SessionHandler {
	return &handshakeSessionHandler{
		sessionHandlerDeps: deps,
		conn:               conn,
		log:                logr.FromContextOrDiscard(conn.Context()).WithName("handshake"),
	}
}

func (h *handshakeSessionHandler) HandlePacket(pc *proto.PacketContext) {
	hs, ok := pc.Packet.(*packet.Handshake)
	if !ok {
		// Anything else is not a Minecraft client.
		_ = h.conn.Close()
		return
	}
	next := stateForProtocol(hs.NextStatus)
	if next == nil {
		h.log.V(1).Info("invalid next state in handshake, closing connection", "nextStatus", hs.NextStatus)
		_ = h.conn.Close()
		return
	}
	h.conn.SetProtocol(proto.Protocol(hs.ProtocolVersion))
	h.conn.SetState(next)

	host := net.JoinHostPort(cleanVirtualHost(hs.ServerAddress), strconv.Itoa(hs.Port))
	inbound := newInitialInbound(h.conn, netutil.NewAddr(host, h.conn.LocalAddr().Network()))
	if next == state.Status {
		h.conn.SetSessionHandler(newStatusSessionHandler(h.conn, inbound, h.sessionHandlerDeps))
		return
	}
	if reason := h.refuseLogin(hs, inbound); reason != nil {
		_ = inbound.disconnect(reason)
		return
	}
	h.conn.SetType(handshakeConnectionType(hs))
	event.FireParallel(h.eventMgr, &ConnectionHandshakeEvent{inboundEvent{inbound}})
	h.conn.SetSessionHandler(newInitialLoginSessionHandler(h.conn, inbound, h.sessionHandlerDeps))
}

// refuseLogin returns why a login must not go on, or nil.
func (h *handshakeSessionHandler) refuseLogin(hs *packet.Handshake, inbound Inbound) component.Component {
	protocol := proto.Protocol(hs.ProtocolVersion)
	switch {
	case !version.Protocol(protocol).Supported():
		key := "multiplayer.disconnect.outdated_client"
		if protocol.Greater(version.MaximumVersion) {
			key = "multiplayer.disconnect.outdated_server"
		}
		return &component.Translation{
			Key:  key,
			With: []component.Component{&component.Text{Content: version.SupportedVersionsString}},
		}
	case h.loginsQuota != nil && h.loginsQuota.Blocked(inbound.RemoteAddr()):
		return loginTooFast
	case h.cfg.Forwarding.Mode == config.VelocityForwardingMode && protocol.Lower(version.Minecraft_1_13):
		// Older clients cannot carry the forwarding query.
		return modernClientsOnly
	}
	return nil
}

func stateForProtocol(status int) *state.Registry {
	switch state.State(status) {
	case state.StatusState:
		return state.Status
	case state.LoginState:
		return state.Login
	}
	return nil
}

func handshakeConnectionType(h *packet.Handshake) netmc.ConnectionType {
	if proto.Protocol(h.ProtocolVersion).Lower(version.Minecraft_1_13) &&
		strings.HasSuffix(h.ServerAddress, legacyForgeHandshakeToken) {
		return netmc.LegacyForge
	}
	return netmc.Vanilla
}

// cleanVirtualHost cuts everything from the first NUL, where mod loaders
// append their markers, and a trailing dot.
func cleanVirtualHost(hostname string) string {
	if i := strings.IndexByte(hostname, 0); i != -1 {
		hostname = hostname[:i]
	}
	return strings.TrimSuffix(hostname, ".")
}

// nopSessionHandler fills in the SessionHandler methods a handler does not need.
type nopSessionHandler struct{}

var _ netmc.SessionHandler = (*nopSessionHandler)(nil)

func (nopSessionHandler) HandlePacket(*proto.PacketContext) {}
func (nopSessionHandler) Disconnected()                     {}
func (nopSessionHandler) Deactivated()                      {}
func (nopSessionHandler) Activated()                        {}
