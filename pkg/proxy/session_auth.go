package proxy

import (
	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/util/permission"
	"github.com/dualspiral/velocity/pkg/util/profile"
)

// authSessionHandler turns an identified login into a player. Each step
// fires its event off the loop and continues on it:
//
//	GameProfileRequestEvent -> PermissionsSetupEvent -> publish
//	-> LoginEvent -> PlayerChooseInitialServerEvent -> Play
type authSessionHandler struct {
	*sessionHandlerDeps

	log        logr.Logger
	inbound    *initialInbound
	profile    *profile.GameProfile
	onlineMode bool

	player *connectedPlayer // set once the profile is final, only touched on the loop

	nopSessionHandler
}

func newAuthSessionHandler(
	inbound *initialInbound,
	gameProfile *profile.GameProfile,
	onlineMode bool,
	deps *sessionHandlerDeps,
) netmc.SessionHandler {
	return &authSessionHandler{
		sessionHandlerDeps: deps,
		log: logr.FromContextOrDiscard(inbound.Context()).WithName("authSession").
			WithValues("username", gameProfile.Name),
		inbound:    inbound,
		profile:    gameProfile,
		onlineMode: onlineMode,
	}
}

func (a *authSessionHandler) Activated() {
	e := &GameProfileRequestEvent{
		inboundEvent: inboundEvent{a.inbound},
		original:     withForgeToken(*a.profile, a.inbound.Type(), a.cfg.Forwarding.Mode),
		onlineMode:   a.onlineMode,
	}
	fireThen(a.eventMgr, a.inbound.MinecraftConn, e, a.setupPermissions)
}

// withForgeToken marks legacy Forge clients in the profile for backends
// reading legacy forwarded data.
func withForgeToken(p profile.GameProfile, connType netmc.ConnectionType, mode config.ForwardingMode) profile.GameProfile {
	if connType != netmc.LegacyForge || mode != config.LegacyForwardingMode {
		return p
	}
	return *p.WithProperties(profile.Property{Name: "forgeClient", Value: "true"})
}

func (a *authSessionHandler) HandlePacket(pc *proto.PacketContext) {
	// Nothing may arrive before ServerLoginSuccess went out.
	a.log.V(1).Info("unexpected packet while finishing login, closing connection", "packet", pc)
	_ = a.inbound.Close()
}

func (a *authSessionHandler) setupPermissions(e *GameProfileRequestEvent) {
	gameProfile := e.GameProfile()
	a.player = newConnectedPlayer(
		a.inbound.MinecraftConn,
		&gameProfile,
		a.inbound.VirtualHost(),
		e.OnlineMode(),
		permission.DefaultFunc,
		a.sessionHandlerDeps,
	)
	setup := &PermissionsSetupEvent{subject: a.player, fallback: permission.DefaultFunc}
	fireThen(a.eventMgr, a.inbound.MinecraftConn, setup, a.publish)
}

// publish makes the player visible to the rest of the proxy.
func (a *authSessionHandler) publish(e *PermissionsSetupEvent) {
	player := a.player
	player.permFunc = e.Func()
	if !a.players.TryInsert(player) {
		a.log.Info("player is already connected", "id", player.ID())
		player.duplicate.Store(true)
		player.Disconnect(alreadyConnected)
		return
	}
	fireThen(a.eventMgr, a.inbound.MinecraftConn, &LoginEvent{playerEvent: playerEvent{player}}, a.afterLogin)
}

func (a *authSessionHandler) afterLogin(e *LoginEvent) {
	if !e.Allowed() {
		a.log.Info("login denied by event subscriber", "reason", e.Reason())
		a.player.Disconnect(e.Reason())
		return
	}
	choose := &PlayerChooseInitialServerEvent{
		playerEvent:   playerEvent{a.player},
		initialServer: a.player.nextServerToTry(nil),
	}
	fireThen(a.eventMgr, a.inbound.MinecraftConn, choose, a.enterPlay)
}

func (a *authSessionHandler) enterPlay(e *PlayerChooseInitialServerEvent) {
	player := a.player
	initial := e.InitialServer()
	if initial == nil {
		a.log.Info("no server left for the player to join")
		player.Disconnect(noAvailableServers)
		return
	}

	if threshold := a.cfg.Compression.Threshold; threshold >= 0 {
		if player.WritePacket(&packet.SetCompression{Threshold: threshold}) != nil {
			return
		}
		if err := player.SetCompressionThreshold(threshold); err != nil {
			a.log.Error(err, "unable to enable compression")
			player.Disconnect(internalServerConnectionError)
			return
		}
	}
	if player.WritePacket(&packet.ServerLoginSuccess{UUID: player.ID(), Username: player.Username()}) != nil {
		return
	}
	player.SetState(state.Play)
	player.SetSessionHandler(newClientPlaySessionHandler(player))
	// The login session paused reading.
	player.SetAutoReading(true)

	player.log.Info("player has connected", "protocol", player.Protocol(), "onlineMode", player.OnlineMode())
	a.proxy.loginCount(player)

	go func() {
		a.eventMgr.Fire(&PostLoginEvent{playerEvent{player}})
		ctx, cancel := withConnectionTimeout(player.Context(), a.cfg.ConnectionTimeout)
		defer cancel()
		player.CreateConnectionRequest(initial).ConnectWithIndication(ctx)
	}()
}

func (a *authSessionHandler) Disconnected() {
	if a.player != nil {
		a.player.teardown()
	}
}
