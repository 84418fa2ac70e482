package proxy

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"

	"github.com/dualspiral/velocity/pkg/internal/future"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
)

var (
	errPlayerGone  = errors.New("player disconnected while joining backend server")
	errBackendGone = errors.New("backend server disconnected while the player was joining")
)

// backendTransitionSessionHandler holds a backend that finished login until
// its JoinGame moved the player over.
//
// The join is relayed between the two loops. The backend loop pauses reading,
// the client loop swaps the backend and forwards JoinGame, then the backend
// loop installs the play handler and resumes.
type backendTransitionSessionHandler struct {
	serverConn *serverConnection
	response   *future.Chan[*connResponse]
	log        logr.Logger

	nopSessionHandler
}

func newBackendTransitionSessionHandler(
	serverConn *serverConnection,
	response *future.Chan[*connResponse],
) netmc.SessionHandler {
	return &backendTransitionSessionHandler{
		serverConn: serverConn,
		response:   response,
		log:        serverConn.log.WithName("transition"),
	}
}

func (b *backendTransitionSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !b.serverConn.active() {
		b.serverConn.disconnect()
		return
	}
	if !pc.KnownPacket() {
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.JoinGame:
		b.handleJoinGame(p)
	case *packet.KeepAlive:
		// The player cannot answer yet.
		if smc, ok := b.serverConn.conn(); ok {
			_ = smc.WritePacket(p)
		}
	case *packet.Disconnect:
		reason := disconnectReason(b.log.V(1), p, b.serverConn.player.Protocol())
		b.resolve(disconnectResult(reason, b.serverConn.server, true), nil)
		b.serverConn.disconnect()
	case *plugin.Message:
		_ = b.serverConn.player.WritePacket(p)
	default:
		b.log.V(1).Info("dropped packet before JoinGame", "type", proto.TypeOf(p))
	}
}

func (b *backendTransitionSessionHandler) Disconnected() {
	b.resolve(nil, errors.New("unexpectedly disconnected from remote server"))
}

func (b *backendTransitionSessionHandler) resolve(result *connectionResult, err error) {
	b.response.Complete(&connResponse{connectionResult: result, error: err})
}

func (b *backendTransitionSessionHandler) fail(err error) {
	b.resolve(nil, err)
	b.serverConn.disconnect()
}

// handleJoinGame runs on the backend loop.
func (b *backendTransitionSessionHandler) handleJoinGame(join *packet.JoinGame) {
	smc, ok := b.serverConn.conn()
	if !ok {
		return
	}
	smc.SetAutoReading(false)
	go b.announce(smc, join)
}

// announce fires ServerConnectedEvent off both loops, while the player is
// still on the previous server, and hands the JoinGame to the client loop.
func (b *backendTransitionSessionHandler) announce(smc netmc.MinecraftConn, join *packet.JoinGame) {
	player := b.serverConn.player
	b.eventMgr().Fire(&ServerConnectedEvent{
		playerEvent: playerEvent{player},
		server:      b.serverConn.server,
		previous:    player.connectedServer().registered(),
	})
	if !player.Exec(func() { b.joinClient(smc, join) }) {
		b.fail(errPlayerGone)
	}
}

// joinClient runs on the client loop. It drops the previous backend and
// forwards the JoinGame.
func (b *backendTransitionSessionHandler) joinClient(smc netmc.MinecraftConn, join *packet.JoinGame) {
	player := b.serverConn.player
	var previous RegisteredServer
	err := errPlayerGone
	if player.Active() {
		if old := player.detachServer(nil); old != nil {
			previous = old.server
			b.log.Info("player switching server", "previous", previous.ServerInfo().Name())
		} else {
			b.log.Info("player joining initial server")
		}
		err = b.forwardJoinGame(join)
	}
	if err == nil {
		player.joined(b.serverConn)
		// The new backend has not seen the client's channel registrations.
		if channels := player.KnownChannels(); len(channels) != 0 {
			_ = smc.WritePacket(plugin.RegisterMessage(smc.Protocol(), channels))
		}
	}
	if !smc.Exec(func() { b.complete(smc, previous, err) }) {
		b.fail(errBackendGone)
	}
}

func (b *backendTransitionSessionHandler) forwardJoinGame(join *packet.JoinGame) error {
	h := b.serverConn.player.SessionHandler()
	playHandler, ok := h.(*clientPlaySessionHandler)
	if !ok {
		return fmt.Errorf("player has unexpected session handler %T", h)
	}
	return playHandler.handleBackendJoinGame(join)
}

// complete runs on the backend loop.
func (b *backendTransitionSessionHandler) complete(smc netmc.MinecraftConn, previous RegisteredServer, err error) {
	player := b.serverConn.player
	if err != nil {
		if !errors.Is(err, errPlayerGone) {
			b.log.Error(err, "unable to move player to new server")
			player.Disconnect(internalServerConnectionError)
		}
		b.fail(fmt.Errorf("client-side server switch failed: %w", err))
		return
	}
	smc.SetSessionHandler(newBackendPlaySessionHandler(b.serverConn))
	smc.SetAutoReading(true)
	b.resolve(settled(SuccessConnectionStatus, b.serverConn.server), nil)
	event.FireParallel(b.eventMgr(), &ServerPostConnectEvent{
		playerEvent: playerEvent{player},
		previous:    previous,
	})
}

func (b *backendTransitionSessionHandler) eventMgr() event.Manager {
	return b.serverConn.player.eventMgr
}
