package proxy

import (
	"errors"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/future"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/errs"
	"github.com/dualspiral/velocity/pkg/util/netutil"
)

// ErrServerOnlineMode is the error of a ConnectionRequest to a backend that
// asked for encryption. Backends behind the proxy must run in offline mode.
var ErrServerOnlineMode = errors.New("backend server is online mode, but should be offline")

// backendLoginSessionHandler logs the player into a backend and answers the
// forwarding query of the velocity forwarding mode.
type backendLoginSessionHandler struct {
	serverConn *serverConnection
	response   *future.Chan[*connResponse]
	log        logr.Logger
	forwarded  atomic.Bool // the player info query was answered

	nopSessionHandler
}

var _ netmc.SessionHandler = (*backendLoginSessionHandler)(nil)

func newBackendLoginSessionHandler(
	serverConn *serverConnection,
	response *future.Chan[*connResponse],
) netmc.SessionHandler {
	return &backendLoginSessionHandler{
		serverConn: serverConn,
		response:   response,
		log:        serverConn.log.WithName("backendLogin"),
	}
}

func (b *backendLoginSessionHandler) HandlePacket(pc *proto.PacketContext) {
	switch p := pc.Packet.(type) {
	case *packet.LoginPluginMessage:
		b.handleLoginPluginMessage(p)
	case *packet.Disconnect:
		reason := disconnectReason(b.log.V(1), p, b.serverConn.player.Protocol())
		b.fail(disconnectResult(reason, b.serverConn.server, true), nil)
	case *packet.EncryptionRequest:
		b.fail(nil, ErrServerOnlineMode)
	case *packet.SetCompression:
		if mc, ok := b.serverConn.conn(); ok {
			if err := mc.SetCompressionThreshold(p.Threshold); err != nil {
				b.fail(nil, err)
			}
		}
	case *packet.ServerLoginSuccess:
		b.handleServerLoginSuccess()
	case nil:
		// unknown packet
	default:
		b.log.V(1).Info("unexpected packet from backend during login", "type", proto.TypeOf(p))
	}
}

// fail resolves the attempt and drops the backend.
func (b *backendLoginSessionHandler) fail(result *connectionResult, err error) {
	b.response.Complete(&connResponse{connectionResult: result, error: err})
	b.serverConn.disconnect()
}

func (b *backendLoginSessionHandler) handleLoginPluginMessage(p *packet.LoginPluginMessage) {
	mc, ok := b.serverConn.conn()
	if !ok {
		return
	}
	cfg := b.serverConn.config()
	if cfg.Forwarding.Mode != config.VelocityForwardingMode || p.Channel != PlayerInfoChannel {
		// Not ours to answer.
		_ = mc.WritePacket(&packet.LoginPluginResponse{ID: p.ID})
		return
	}
	player := b.serverConn.player
	data, err := createVelocityForwardingData([]byte(cfg.Forwarding.VelocitySecret),
		netutil.Host(player.RemoteAddr()), player.profile)
	if err != nil {
		b.log.Error(err, "unable to sign forwarding data")
		b.serverConn.disconnect()
		return
	}
	if mc.WritePacket(&packet.LoginPluginResponse{ID: p.ID, Success: true, Data: data}) == nil {
		b.forwarded.Store(true)
	}
}

func (b *backendLoginSessionHandler) handleServerLoginSuccess() {
	if b.serverConn.config().Forwarding.Mode == config.VelocityForwardingMode && !b.forwarded.Load() {
		b.fail(disconnectResult(velocityIpForwardingFailure, b.serverConn.server, true), nil)
		return
	}
	mc, ok := b.serverConn.conn()
	if !ok {
		return
	}
	// The backend may still refuse the player until it sent JoinGame.
	mc.SetState(state.Play)
	mc.SetSessionHandler(newBackendTransitionSessionHandler(b.serverConn, b.response))
}

func (b *backendLoginSessionHandler) Disconnected() {
	msg := "the connection to the remote server was unexpectedly closed"
	if b.serverConn.config().Forwarding.Mode == config.LegacyForwardingMode {
		msg += ".\nThis is usually because the remote server does not have BungeeCord IP forwarding correctly enabled"
	}
	b.response.Complete(&connResponse{error: errs.NewSilentErr(msg)})
}

// disconnectReason decodes the reason of a backend's Disconnect. A reason
// that is not valid json is shown as plain text.
func disconnectReason(log logr.Logger, p *packet.Disconnect, protocol proto.Protocol) component.Component {
	if p == nil || p.Reason == "" {
		return nil
	}
	reason, err := util.JsonCodec(protocol).Unmarshal([]byte(p.Reason))
	if err != nil {
		log.Info("backend sent an undecodable disconnect reason",
			"error", err, "protocol", protocol, "reason", p.Reason)
		return &component.Text{Content: p.Reason}
	}
	return reason
}
