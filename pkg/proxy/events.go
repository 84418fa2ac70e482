package proxy

import (
	"net"

	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/util/permission"
	"github.com/dualspiral/velocity/pkg/util/profile"
)

// Events are fired on Options.EventMgr. Unless noted otherwise the proxy
// waits for subscribers to return before it goes on with the session.

type inboundEvent struct{ inbound Inbound }

// Connection returns the client connection the event is about.
func (e *inboundEvent) Connection() Inbound { return e.inbound }

type playerEvent struct{ player Player }

// Player returns the player the event is about.
func (e *playerEvent) Player() Player { return e.player }

// Handshake and status.

// ConnectionHandshakeEvent is fired without waiting once a client sent its Handshake.
type ConnectionHandshakeEvent struct{ inboundEvent }

// PingEvent is fired for every status request. Subscribers may edit Ping in place
// or replace it.
type PingEvent struct {
	inboundEvent
	ping *ServerPing
}

func (e *PingEvent) Ping() *ServerPing        { return e.ping }
func (e *PingEvent) SetPing(ping *ServerPing) { e.ping = ping }

// Login.

// PreLoginResult decides how a login continues after PreLoginEvent.
type PreLoginResult uint8

const (
	AllowedPreLogin PreLoginResult = iota
	DeniedPreLogin
	ForceOnlineModePreLogin
	ForceOfflineModePreLogin
)

// PreLoginEvent is fired after ServerLogin arrived and before the client is
// asked to encrypt. The default result follows the onlineMode setting.
type PreLoginEvent struct {
	inboundEvent
	username string
	result   PreLoginResult
	reason   component.Component
}

func newPreLoginEvent(conn Inbound, username string) *PreLoginEvent {
	return &PreLoginEvent{inboundEvent: inboundEvent{conn}, username: username}
}

func (e *PreLoginEvent) Username() string                { return e.username }
func (e *PreLoginEvent) Conn() Inbound                   { return e.inbound }
func (e *PreLoginEvent) Result() PreLoginResult          { return e.result }
func (e *PreLoginEvent) Reason() component.Component     { return e.reason }
func (e *PreLoginEvent) Allow()                          { e.set(AllowedPreLogin, nil) }
func (e *PreLoginEvent) ForceOnlineMode()                { e.set(ForceOnlineModePreLogin, nil) }
func (e *PreLoginEvent) ForceOfflineMode()               { e.set(ForceOfflineModePreLogin, nil) }
func (e *PreLoginEvent) Deny(reason component.Component) { e.set(DeniedPreLogin, reason) }

func (e *PreLoginEvent) set(r PreLoginResult, reason component.Component) {
	e.result, e.reason = r, reason
}

// GameProfileRequestEvent lets subscribers swap the profile a player joins with,
// e.g. to replace skins. It is fired once identity is settled.
type GameProfileRequestEvent struct {
	inboundEvent
	original   profile.GameProfile
	onlineMode bool
	override   *profile.GameProfile
}

func (e *GameProfileRequestEvent) Conn() Inbound                 { return e.inbound }
func (e *GameProfileRequestEvent) Original() profile.GameProfile { return e.original }
func (e *GameProfileRequestEvent) OnlineMode() bool              { return e.onlineMode }
func (e *GameProfileRequestEvent) SetGameProfile(p profile.GameProfile) {
	e.override = &p
}

// GameProfile is the override if one with a name was set, else the original.
func (e *GameProfileRequestEvent) GameProfile() profile.GameProfile {
	if e.override != nil && e.override.Name != "" {
		return *e.override
	}
	return e.original
}

// PermissionsSetupEvent chooses the permission.Func of a new player.
type PermissionsSetupEvent struct {
	subject  permission.Subject
	fallback permission.Func
	fn       permission.Func
}

func (e *PermissionsSetupEvent) Subject() permission.Subject { return e.subject }

// SetFunc replaces the permission function. nil restores the default.
func (e *PermissionsSetupEvent) SetFunc(fn permission.Func) { e.fn = fn }

func (e *PermissionsSetupEvent) Func() permission.Func {
	if e.fn != nil {
		return e.fn
	}
	return e.fallback
}

// LoginEvent is the last chance to turn a verified player away before
// the proxy picks a backend.
type LoginEvent struct {
	playerEvent
	reason component.Component
	denied bool
}

func (e *LoginEvent) Deny(reason component.Component) { e.denied, e.reason = true, reason }
func (e *LoginEvent) Allow()                          { e.denied, e.reason = false, nil }
func (e *LoginEvent) Allowed() bool                   { return !e.denied }
func (e *LoginEvent) Reason() component.Component     { return e.reason }

// PostLoginEvent is fired without waiting once the client is in Play.
type PostLoginEvent struct{ playerEvent }

// PlayerChooseInitialServerEvent picks the first backend. The default is the
// first reachable entry of the try list; nil disconnects the player.
type PlayerChooseInitialServerEvent struct {
	playerEvent
	initialServer RegisteredServer
}

func (e *PlayerChooseInitialServerEvent) InitialServer() RegisteredServer { return e.initialServer }
func (e *PlayerChooseInitialServerEvent) SetInitialServer(s RegisteredServer) {
	e.initialServer = s
}

// LoginStatus records how far a session got when it ended.
type LoginStatus uint8

const (
	SuccessfulLoginStatus LoginStatus = iota
	ConflictingLoginStatus
	CanceledByUserLoginStatus
	CanceledByProxyLoginStatus
)

var loginStatusNames = [...]string{
	SuccessfulLoginStatus:      "successful",
	ConflictingLoginStatus:     "conflicting",
	CanceledByUserLoginStatus:  "canceled by user",
	CanceledByProxyLoginStatus: "canceled by proxy",
}

func (s LoginStatus) String() string {
	if int(s) < len(loginStatusNames) {
		return loginStatusNames[s]
	}
	return "unknown"
}

// DisconnectEvent is fired once per player when its session ends.
// The player may only be inspected.
type DisconnectEvent struct {
	playerEvent
	loginStatus LoginStatus
}

func (e *DisconnectEvent) LoginStatus() LoginStatus { return e.loginStatus }

// Backend switching.

// ServerPreConnectEvent is fired before dialing a backend. Subscribers may
// point the request at another server or deny it.
type ServerPreConnectEvent struct {
	playerEvent
	original, target RegisteredServer
}

func newServerPreConnectEvent(player Player, server RegisteredServer) *ServerPreConnectEvent {
	return &ServerPreConnectEvent{playerEvent: playerEvent{player}, original: server, target: server}
}

func (e *ServerPreConnectEvent) OriginalServer() RegisteredServer { return e.original }
func (e *ServerPreConnectEvent) Server() RegisteredServer         { return e.target }
func (e *ServerPreConnectEvent) Allow(s RegisteredServer)         { e.target = s }
func (e *ServerPreConnectEvent) Deny()                            { e.target = nil }
func (e *ServerPreConnectEvent) Allowed() bool                    { return e.target != nil }

// ServerConnectedEvent is fired once the new backend sent JoinGame, before
// the client learns about the switch. Player().CurrentServer() still reports
// the previous server here.
type ServerConnectedEvent struct {
	playerEvent
	server, previous RegisteredServer
}

func (e *ServerConnectedEvent) Server() RegisteredServer         { return e.server }
func (e *ServerConnectedEvent) PreviousServer() RegisteredServer { return e.previous }

// ServerPostConnectEvent is fired without waiting after the client moved over.
type ServerPostConnectEvent struct {
	playerEvent
	previous RegisteredServer
}

func (e *ServerPostConnectEvent) PreviousServer() RegisteredServer { return e.previous }

// KickedFromServerEvent is fired when a backend disconnects a player or a
// connection attempt fails. The preset result follows the rollback policy in
// switch.go and subscribers may replace it.
type KickedFromServerEvent struct {
	playerEvent
	server          RegisteredServer
	originalReason  component.Component
	onCurrentServer bool
	result          ServerKickResult
}

func (e *KickedFromServerEvent) Server() RegisteredServer            { return e.server }
func (e *KickedFromServerEvent) OriginalReason() component.Component { return e.originalReason }
func (e *KickedFromServerEvent) KickedDuringServerConnect() bool     { return !e.onCurrentServer }
func (e *KickedFromServerEvent) Result() ServerKickResult            { return e.result }
func (e *KickedFromServerEvent) SetResult(r ServerKickResult)        { e.result = r }

// ServerKickResult is one of DisconnectPlayerKickResult, RedirectPlayerKickResult
// and NotifyKickResult.
type ServerKickResult interface{ kickResult() }

// DisconnectPlayerKickResult ends the player's session.
type DisconnectPlayerKickResult struct{ Reason component.Component }

// RedirectPlayerKickResult moves the player to Server and, if set, shows Message in chat.
type RedirectPlayerKickResult struct {
	Server  RegisteredServer
	Message component.Component
}

// NotifyKickResult keeps the player where they are and shows Message in chat.
// For a player kicked off its current server it acts like a disconnect.
type NotifyKickResult struct{ Message component.Component }

func (*DisconnectPlayerKickResult) kickResult() {}
func (*RedirectPlayerKickResult) kickResult()   {}
func (*NotifyKickResult) kickResult()           {}

// Lifecycle.

// ReadyEvent is fired once the listener is bound.
type ReadyEvent struct{ addr net.Addr }

func (e *ReadyEvent) Addr() net.Addr { return e.addr }

// PreShutdownEvent may change the reason all players are disconnected with.
type PreShutdownEvent struct{ reason component.Component }

func (e *PreShutdownEvent) Reason() component.Component     { return e.reason }
func (e *PreShutdownEvent) SetReason(r component.Component) { e.reason = r }

// ShutdownEvent is fired after every player was disconnected.
type ShutdownEvent struct{}
