package proxy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/dualspiral/velocity/pkg/auth"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/netutil"
	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/util/validation"
)

// PlayerInfoChannel is the login plugin channel of velocity forwarding. The
// proxy also sends it to its own clients to spot proxies chained in front.
const PlayerInfoChannel = "velocity:player_info"

// authenticateTimeout bounds the session server lookup of one login.
const authenticateTimeout = 30 * time.Second

// ErrTooLongUsername is logged for a login name longer than 16 characters.
var ErrTooLongUsername = errors.New("username too long")

// loginStep is the packet the login handler waits for.
type loginStep uint8

const (
	awaitingServerLogin loginStep = iota
	awaitingPlayerInfoResponse
	awaitingPreLogin // no packet is accepted until PreLoginEvent was handled
	awaitingEncryptionResponse
	awaitingAuthentication
)

var loginStepNames = [...]string{
	awaitingServerLogin:        "ServerLogin",
	awaitingPlayerInfoResponse: "LoginPluginResponse",
	awaitingPreLogin:           "PreLoginEvent",
	awaitingEncryptionResponse: "EncryptionResponse",
	awaitingAuthentication:     "authentication",
}

func (s loginStep) String() string { return loginStepNames[s] }

// initialLoginSessionHandler identifies a client: it checks the name, asks
// PreLoginEvent subscribers and, in online mode, runs the encryption and
// session server handshake.
type initialLoginSessionHandler struct {
	*sessionHandlerDeps

	conn    netmc.MinecraftConn
	inbound *initialInbound
	log     logr.Logger

	step         loginStep
	login        *packet.ServerLogin
	verifyToken  []byte
	playerInfoID int

	nopSessionHandler
}

func newInitialLoginSessionHandler(conn netmc.MinecraftConn, inbound *initialInbound, deps *sessionHandlerDeps) netmc.SessionHandler {
	return &initialLoginSessionHandler{
		sessionHandlerDeps: deps,
		conn:               conn,
		inbound:            inbound,
		log:                logr.FromContextOrDiscard(conn.Context()).WithName("login"),
	}
}

func (l *initialLoginSessionHandler) HandlePacket(pc *proto.PacketContext) {
	var want loginStep
	switch pc.Packet.(type) {
	case *packet.ServerLogin:
		want = awaitingServerLogin
	case *packet.LoginPluginResponse:
		want = awaitingPlayerInfoResponse
	case *packet.EncryptionResponse:
		want = awaitingEncryptionResponse
	default:
		_ = l.conn.Close()
		return
	}
	if l.step != want {
		l.log.Info("unexpected packet during login, closing connection",
			"expected", l.step, "got", proto.TypeOf(pc.Packet))
		_ = l.conn.Close()
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.ServerLogin:
		l.handleServerLogin(p)
	case *packet.LoginPluginResponse:
		l.handlePlayerInfoResponse(p)
	case *packet.EncryptionResponse:
		l.handleEncryptionResponse(p)
	}
}

func (l *initialLoginSessionHandler) handleServerLogin(login *packet.ServerLogin) {
	if len(login.Username) > validation.MaxUsernameLength {
		l.log.V(1).Info("closing connection", "error", ErrTooLongUsername, "length", len(login.Username))
		_ = l.conn.Close()
		return
	}
	if !validation.ValidUsername(login.Username) {
		_ = l.inbound.disconnect(invalidPlayerName)
		return
	}
	l.login = login
	l.log = l.log.WithValues("username", login.Username)

	if l.conn.Protocol().Lower(version.Minecraft_1_13) {
		// Login plugin messages exist since 1.13.
		l.firePreLogin()
		return
	}
	// A vanilla client answers Success false. A proxy in front of us would answer with its player info.
	l.playerInfoID = randomID()
	if l.conn.WritePacket(&packet.LoginPluginMessage{ID: l.playerInfoID, Channel: PlayerInfoChannel}) == nil {
		l.step = awaitingPlayerInfoResponse
	}
}

func (l *initialLoginSessionHandler) handlePlayerInfoResponse(resp *packet.LoginPluginResponse) {
	switch {
	case resp.ID != l.playerInfoID:
		l.log.V(1).Info("ignoring login plugin response with unknown id", "id", resp.ID)
	case resp.Success:
		_ = l.inbound.disconnect(proxyBehindProxy)
	default:
		l.firePreLogin()
	}
}

func (l *initialLoginSessionHandler) firePreLogin() {
	l.step = awaitingPreLogin
	l.conn.SetAutoReading(false)
	fireThen(l.eventMgr, l.conn, newPreLoginEvent(l.inbound, l.login.Username), l.afterPreLogin)
}

func (l *initialLoginSessionHandler) afterPreLogin(e *PreLoginEvent) {
	online := l.cfg.OnlineMode
	switch e.Result() {
	case DeniedPreLogin:
		_ = l.inbound.disconnect(firstMessage(e.Reason(), noReason))
		return
	case ForceOnlineModePreLogin:
		online = true
	case ForceOfflineModePreLogin:
		online = false
	}
	if !online {
		l.conn.SetSessionHandler(newAuthSessionHandler(
			l.inbound, profile.NewOffline(l.login.Username), false, l.sessionHandlerDeps))
		return
	}

	l.verifyToken = make([]byte, 4)
	_, _ = rand.Read(l.verifyToken)
	if l.conn.WritePacket(&packet.EncryptionRequest{
		PublicKey:   l.authenticator.PublicKey(),
		VerifyToken: l.verifyToken,
	}) != nil {
		return
	}
	l.step = awaitingEncryptionResponse
	l.conn.SetAutoReading(true)
}

func (l *initialLoginSessionHandler) handleEncryptionResponse(resp *packet.EncryptionResponse) {
	l.step = awaitingAuthentication
	authn := l.authenticator

	if valid, err := authn.Verify(resp.VerifyToken, l.verifyToken); err != nil || !valid {
		if err == nil {
			err = auth.ErrVerifyTokenMismatch
		}
		l.log.V(1).Info("rejecting encryption response", "error", err)
		_ = l.conn.Close()
		return
	}
	secret, err := authn.DecryptSharedSecret(resp.SharedSecret)
	if err != nil {
		l.log.V(1).Info("unable to decrypt shared secret", "error", err)
		_ = l.conn.Close()
		return
	}
	serverID, err := authn.GenerateServerID(secret)
	if err != nil {
		_ = l.inbound.disconnect(unableAuthWithMojang)
		return
	}

	// Whatever the client sends next is enciphered.
	l.conn.SetAutoReading(false)

	log := l.log.WithName("authn")
	username, ip := l.login.Username, netutil.Host(l.conn.RemoteAddr())
	go func() {
		ctx, cancel := context.WithTimeout(logr.NewContext(l.conn.Context(), log), authenticateTimeout)
		defer cancel()
		resp, err := authn.AuthenticateJoin(ctx, serverID, username, ip)
		l.conn.Exec(func() { l.afterAuthentication(log, secret, resp, err) })
	}()
}

// afterAuthentication runs on the loop with the session server's answer.
func (l *initialLoginSessionHandler) afterAuthentication(log logr.Logger, secret []byte, resp auth.Response, err error) {
	switch {
	case netmc.Closed(l.conn), errors.Is(err, context.Canceled):
		return
	case err != nil:
		log.Info("unable to authenticate player", "error", err)
		_ = l.inbound.disconnect(unableAuthWithMojang)
		return
	case !resp.OnlineMode():
		log.Info("refusing offline mode player")
		_ = l.inbound.disconnect(onlineModeOnly)
		return
	}
	if err = l.conn.EnableEncryption(secret); err != nil {
		log.Error(err, "unable to enable encryption")
		_ = l.inbound.disconnect(internalServerConnectionError)
		return
	}
	gameProfile, err := resp.GameProfile()
	if err != nil {
		log.Error(err, "session server sent an unreadable profile")
		_ = l.inbound.disconnect(unableAuthWithMojang)
		return
	}
	l.conn.SetSessionHandler(newAuthSessionHandler(l.inbound, gameProfile, true, l.sessionHandlerDeps))
}

func randomID() int {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return int(int32(binary.BigEndian.Uint32(b[:])))
}
