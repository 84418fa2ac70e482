package proxy

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/robinbraemer/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/auth"
	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/codec"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/permission"
	"github.com/dualspiral/velocity/pkg/util/profile"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

const testTimeout = 5 * time.Second

var testProtocol = version.Minecraft_1_12_2.Protocol

// testPeer speaks the protocol on one side of a tcp connection.
type testPeer struct {
	t    *testing.T
	conn net.Conn
	enc  *codec.Encoder
	dec  *codec.Decoder
}

// newTestPeer returns a peer writing packets bound to out.
func newTestPeer(t *testing.T, conn net.Conn, out proto.Direction) *testPeer {
	in := proto.ClientBound
	if out == proto.ClientBound {
		in = proto.ServerBound
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testPeer{
		t:    t,
		conn: conn,
		enc:  codec.NewEncoder(conn, out, logr.Discard()),
		dec:  codec.NewDecoder(conn, in, logr.Discard()),
	}
}

func (c *testPeer) setState(s *state.Registry) {
	c.enc.SetState(s)
	c.dec.SetState(s)
}

func (c *testPeer) setProtocol(p proto.Protocol) {
	c.enc.SetProtocol(p)
	c.dec.SetProtocol(p)
}

func (c *testPeer) write(p proto.Packet) {
	c.t.Helper()
	_, err := c.enc.WritePacket(p)
	require.NoError(c.t, err)
}

func (c *testPeer) readErr() (proto.Packet, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	pc, err := c.dec.Decode()
	if err != nil {
		return nil, err
	}
	return pc.Packet, nil
}

func (c *testPeer) read() proto.Packet {
	c.t.Helper()
	p, err := c.readErr()
	require.NoError(c.t, err)
	return p
}

// readUntil skips packets until one of type T arrives.
func readUntil[T proto.Packet](c *testPeer) T {
	c.t.Helper()
	for {
		if p, ok := c.read().(T); ok {
			return p
		}
	}
}

func (c *testPeer) requireClosed() {
	c.t.Helper()
	for {
		_, err := c.readErr()
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatal("connection was not closed")
		}
		return
	}
}

// disconnectText decodes the plain text of a Disconnect reason.
func disconnectText(t *testing.T, d *packet.Disconnect) string {
	t.Helper()
	c, err := util.JsonCodec(testProtocol).Unmarshal([]byte(d.Reason))
	require.NoError(t, err)
	return util.MarshalPlain(c)
}

//
//
//

// testBackend is a backend server that accepts players in offline mode.
type testBackend struct {
	ln    net.Listener
	conns chan *backendConn
	// onLogin replaces the default login response, if set.
	onLogin func(c *backendConn)
}

type backendConn struct {
	*testPeer
	handshake *packet.Handshake
	login     *packet.ServerLogin
}

func startBackend(t *testing.T, dimension int) *testBackend {
	t.Helper()
	return startBackendWith(t, dimension, nil)
}

func startBackendWith(t *testing.T, dimension int, onLogin func(c *backendConn)) *testBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	b := &testBackend{ln: ln, conns: make(chan *backendConn, 8), onLogin: onLogin}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go b.serve(t, conn, dimension)
		}
	}()
	return b
}

func (b *testBackend) addr() string { return b.ln.Addr().String() }

func (b *testBackend) serve(t *testing.T, conn net.Conn, dimension int) {
	c := &backendConn{testPeer: newTestPeer(t, conn, proto.ClientBound)}
	p, err := c.readErr()
	if err != nil {
		return
	}
	c.handshake = p.(*packet.Handshake)
	c.setProtocol(proto.Protocol(c.handshake.ProtocolVersion))
	c.setState(state.Login)
	if p, err = c.readErr(); err != nil {
		return
	}
	c.login = p.(*packet.ServerLogin)

	if b.onLogin != nil {
		b.onLogin(c)
		b.conns <- c
		return
	}
	_, _ = c.enc.WritePacket(&packet.ServerLoginSuccess{
		UUID:     uuid.OfflinePlayerUUID(c.login.Username),
		Username: c.login.Username,
	})
	c.setState(state.Play)
	_, _ = c.enc.WritePacket(&packet.JoinGame{
		EntityID:   7,
		Dimension:  dimension,
		MaxPlayers: 20,
		LevelType:  "default",
	})
	b.conns <- c
}

func (b *testBackend) accepted(t *testing.T) *backendConn {
	t.Helper()
	select {
	case c := <-b.conns:
		return c
	case <-time.After(testTimeout):
		t.Fatal("backend did not accept a player")
		return nil
	}
}

//
//
//

func testConfig(servers map[string]string, try ...string) *config.Config {
	cfg := config.DefaultConfig
	cfg.Bind = "127.0.0.1:0"
	cfg.OnlineMode = false
	cfg.Servers = servers
	cfg.Try = try
	cfg.Quota = config.Quota{}
	cfg.Compression.Threshold = -1
	cfg.ShutdownReason = ""
	return &cfg
}

type testProxy struct {
	*Proxy
	addr net.Addr
}

func startProxy(t *testing.T, cfg *config.Config, mgr event.Manager, authn auth.Authenticator) *testProxy {
	t.Helper()
	if mgr == nil {
		mgr = event.New()
	}
	ready := make(chan net.Addr, 1)
	event.Subscribe(mgr, 0, func(e *ReadyEvent) { ready <- e.Addr() })

	p, err := New(Options{Config: cfg, EventMgr: mgr, Authenticator: authn})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(testTimeout):
			t.Error("proxy did not shut down")
		}
	})

	select {
	case addr := <-ready:
		return &testProxy{Proxy: p, addr: addr}
	case err := <-done:
		t.Fatalf("proxy stopped: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("proxy did not become ready")
	}
	return nil
}

func (p *testProxy) dial(t *testing.T) *testPeer {
	t.Helper()
	conn, err := net.DialTimeout("tcp", p.addr.String(), testTimeout)
	require.NoError(t, err)
	c := newTestPeer(t, conn, proto.ServerBound)
	return c
}

// beginLogin sends the handshake and login start of a client.
func (c *testPeer) beginLogin(protocol proto.Protocol, username string) {
	c.t.Helper()
	c.write(&packet.Handshake{
		ProtocolVersion: int(protocol),
		ServerAddress:   "play.example.com",
		Port:            25577,
		NextStatus:      int(state.LoginState),
	})
	c.setProtocol(protocol)
	c.setState(state.Login)
	c.write(&packet.ServerLogin{Username: username})
}

// login logs in an offline player and returns once the client joined its first server.
func (c *testPeer) login(username string) *packet.JoinGame {
	c.t.Helper()
	c.beginLogin(testProtocol, username)
	success, ok := c.read().(*packet.ServerLoginSuccess)
	require.True(c.t, ok, "expected ServerLoginSuccess")
	assert.Equal(c.t, username, success.Username)
	assert.Equal(c.t, uuid.OfflinePlayerUUID(username), success.UUID)
	c.setState(state.Play)
	return readUntil[*packet.JoinGame](c)
}

func currentServerName(p Player) string {
	if cs := p.CurrentServer(); cs != nil {
		return cs.Server().ServerInfo().Name()
	}
	return ""
}

//
//
//

func TestStatus(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Status.Motd = "§bHello status"
	p := startProxy(t, cfg, nil, nil)

	c := p.dial(t)
	c.write(&packet.Handshake{
		ProtocolVersion: int(testProtocol),
		ServerAddress:   "localhost",
		Port:            25577,
		NextStatus:      int(state.StatusState),
	})
	c.setProtocol(testProtocol)
	c.setState(state.Status)
	c.write(&packet.StatusRequest{})

	resp, ok := c.read().(*packet.StatusResponse)
	require.True(t, ok)
	var ping struct {
		Version struct {
			Protocol int    `json:"protocol"`
			Name     string `json:"name"`
		} `json:"version"`
		Players struct {
			Online int `json:"online"`
			Max    int `json:"max"`
		} `json:"players"`
		Description json.RawMessage `json:"description"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Status), &ping))
	assert.Equal(t, int(testProtocol), ping.Version.Protocol)
	assert.Equal(t, versionName, ping.Version.Name)
	assert.Equal(t, 500, ping.Players.Max)
	assert.Contains(t, string(ping.Description), "Hello status")

	c.write(&packet.StatusPing{RandomID: 1234})
	assert.Equal(t, &packet.StatusPing{RandomID: 1234}, c.read())
	c.requireClosed()
}

func TestPingEventOverridesResponse(t *testing.T) {
	mgr := event.New()
	event.Subscribe(mgr, 0, func(e *PingEvent) {
		e.Ping().Players.Max = 1
	})
	p := startProxy(t, testConfig(nil), mgr, nil)

	for i := 0; i < 2; i++ {
		c := p.dial(t)
		c.write(&packet.Handshake{ProtocolVersion: int(testProtocol), NextStatus: int(state.StatusState)})
		c.setProtocol(testProtocol)
		c.setState(state.Status)
		c.write(&packet.StatusRequest{})
		resp := c.read().(*packet.StatusResponse)
		assert.Contains(t, resp.Status, `"max":1`)
	}
	// Subscribers work on a copy of the cached response.
	cached, err := p.statusCache.Get(testProtocol)
	require.NoError(t, err)
	assert.Equal(t, 500, cached.Players.Max)
}

func TestInvalidNextStateCloses(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)
	c := p.dial(t)
	c.write(&packet.Handshake{ProtocolVersion: int(testProtocol), NextStatus: 3})
	c.requireClosed()
}

func TestLoginOutdatedClient(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)
	c := p.dial(t)
	c.write(&packet.Handshake{
		ProtocolVersion: 5, // 1.7.10
		ServerAddress:   "localhost",
		Port:            25577,
		NextStatus:      int(state.LoginState),
	})
	c.setProtocol(5)
	c.setState(state.Login)

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Contains(t, d.Reason, "multiplayer.disconnect.outdated_client")
	c.requireClosed()
}

func TestLoginInvalidUsername(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)
	c := p.dial(t)
	c.beginLogin(testProtocol, "no spaces")

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, invalidPlayerName.Content, disconnectText(t, d))
}

func TestLoginTooLongUsernameCloses(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)
	c := p.dial(t)
	c.beginLogin(testProtocol, "abcdefghijklmnopq")
	c.requireClosed()
	assert.Zero(t, p.PlayerCount())
}

func TestLegacyForgeMarkerReachesBackend(t *testing.T) {
	lobby := startBackend(t, 0)
	p := startProxy(t, testConfig(map[string]string{"lobby": lobby.addr()}, "lobby"), nil, nil)

	c := p.dial(t)
	c.write(&packet.Handshake{
		ProtocolVersion: int(testProtocol),
		ServerAddress:   "play.example.com" + legacyForgeHandshakeToken,
		Port:            25577,
		NextStatus:      int(state.LoginState),
	})
	c.setProtocol(testProtocol)
	c.setState(state.Login)
	c.write(&packet.ServerLogin{Username: "Alice"})
	_ = c.read().(*packet.ServerLoginSuccess)

	backend := lobby.accepted(t)
	assert.Equal(t, "127.0.0.1"+legacyForgeHandshakeToken, backend.handshake.ServerAddress)
	player := p.PlayerByName("Alice")
	require.NotNil(t, player)
	assert.Equal(t, "play.example.com:25577", player.VirtualHost().String())
}

func TestOfflineLoginJoinsInitialServer(t *testing.T) {
	lobby := startBackend(t, 0)
	mgr := event.New()
	disconnects := make(chan LoginStatus, 1)
	event.Subscribe(mgr, 0, func(e *DisconnectEvent) { disconnects <- e.LoginStatus() })
	postConnects := make(chan RegisteredServer, 1)
	event.Subscribe(mgr, 0, func(e *ServerPostConnectEvent) { postConnects <- e.PreviousServer() })

	p := startProxy(t, testConfig(map[string]string{"lobby": lobby.addr()}, "lobby"), mgr, nil)
	c := p.dial(t)
	join := c.login("Alice")
	assert.Equal(t, 7, join.EntityID)

	backend := lobby.accepted(t)
	assert.Equal(t, "127.0.0.1", backend.handshake.ServerAddress)
	assert.Equal(t, "Alice", backend.login.Username)

	player := p.PlayerByName("alice")
	require.NotNil(t, player)
	assert.Same(t, player, p.Player(uuid.OfflinePlayerUUID("Alice")))
	assert.False(t, player.OnlineMode())
	assert.Equal(t, 1, p.PlayerCount())
	assert.Equal(t, "play.example.com:25577", player.VirtualHost().String())
	require.Eventually(t, func() bool { return currentServerName(player) == "lobby" }, testTimeout, 10*time.Millisecond)
	assert.Equal(t, 1, p.Server("LOBBY").Players().Len())
	select {
	case previous := <-postConnects:
		assert.Nil(t, previous)
	case <-time.After(testTimeout):
		t.Fatal("no ServerPostConnectEvent")
	}

	// Keep-alives are relayed in both directions.
	backend.write(&packet.KeepAlive{RandomID: 42})
	assert.Equal(t, &packet.KeepAlive{RandomID: 42}, readUntil[*packet.KeepAlive](c))
	c.write(&packet.KeepAlive{RandomID: 42})
	assert.Equal(t, &packet.KeepAlive{RandomID: 42}, readUntil[*packet.KeepAlive](backend.testPeer))
	require.Eventually(t, func() bool { return player.Ping() >= 0 }, testTimeout, 10*time.Millisecond)

	// Plugin messages from the client reach the playing backend.
	c.write(&plugin.Message{Channel: "test:channel", Data: []byte("hi")})
	msg := readUntil[*plugin.Message](backend.testPeer)
	assert.Equal(t, "test:channel", msg.Channel)
	assert.Equal(t, []byte("hi"), msg.Data)

	// Closing the client tears down the backend connection and the directory entry.
	require.NoError(t, c.conn.Close())
	backend.requireClosed()
	select {
	case status := <-disconnects:
		assert.Equal(t, SuccessfulLoginStatus, status)
	case <-time.After(testTimeout):
		t.Fatal("no DisconnectEvent")
	}
	assert.Zero(t, p.PlayerCount())
	assert.Nil(t, p.PlayerByName("alice"))
	assert.Zero(t, p.Server("lobby").Players().Len())
}

func TestDuplicateLoginKeepsLiveSession(t *testing.T) {
	lobby := startBackend(t, 0)
	mgr := event.New()
	statuses := make(chan LoginStatus, 2)
	event.Subscribe(mgr, 0, func(e *DisconnectEvent) { statuses <- e.LoginStatus() })
	p := startProxy(t, testConfig(map[string]string{"lobby": lobby.addr()}, "lobby"), mgr, nil)

	first := p.dial(t)
	first.login("Alice")
	live := p.PlayerByName("Alice")
	require.NotNil(t, live)

	second := p.dial(t)
	second.beginLogin(testProtocol, "alice")
	d, ok := second.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, alreadyConnected.Content, disconnectText(t, d))
	second.requireClosed()

	select {
	case status := <-statuses:
		assert.Equal(t, ConflictingLoginStatus, status)
	case <-time.After(testTimeout):
		t.Fatal("no DisconnectEvent for the duplicate")
	}
	assert.Same(t, live, p.PlayerByName("alice"))
	assert.True(t, live.Active())
	assert.Equal(t, 1, p.PlayerCount())
}

func TestPreLoginDenied(t *testing.T) {
	mgr := event.New()
	event.Subscribe(mgr, 0, func(e *PreLoginEvent) {
		e.Deny(&component.Text{Content: "come back later"})
	})
	p := startProxy(t, testConfig(nil), mgr, nil)
	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, "come back later", disconnectText(t, d))
	c.requireClosed()
}

func TestLoginEventDenied(t *testing.T) {
	lobby := startBackend(t, 0)
	mgr := event.New()
	event.Subscribe(mgr, 0, func(e *LoginEvent) {
		e.Deny(&component.Text{Content: "banned"})
	})
	p := startProxy(t, testConfig(map[string]string{"lobby": lobby.addr()}, "lobby"), mgr, nil)
	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, "banned", disconnectText(t, d))
	c.requireClosed()
	require.Eventually(t, func() bool { return p.PlayerCount() == 0 }, testTimeout, 10*time.Millisecond)
}

func TestPermissionsInstalledBeforeLookup(t *testing.T) {
	lobby := startBackend(t, 0)
	mgr := event.New()
	var (
		proxy        atomic.Pointer[testProxy]
		visibleEarly atomic.Bool
	)
	event.Subscribe(mgr, 0, func(e *PermissionsSetupEvent) {
		// Give lookups a window to see the player before the func is set.
		time.Sleep(50 * time.Millisecond)
		if p := proxy.Load(); p != nil && p.PlayerByName("Alice") != nil {
			visibleEarly.Store(true)
		}
		e.SetFunc(permission.Fixed(permission.True))
	})
	p := startProxy(t, testConfig(map[string]string{"lobby": lobby.addr()}, "lobby"), mgr, nil)
	proxy.Store(p)

	firstSeen := make(chan bool, 1)
	go func() {
		deadline := time.Now().Add(testTimeout)
		for time.Now().Before(deadline) {
			if player := p.PlayerByName("Alice"); player != nil {
				firstSeen <- player.HasPermission("velocity.command.server")
				return
			}
			time.Sleep(time.Millisecond)
		}
		close(firstSeen)
	}()

	c := p.dial(t)
	c.login("Alice")
	allowed, ok := <-firstSeen
	require.True(t, ok, "player never became visible")
	assert.True(t, allowed, "the first lookup must already see the installed permission func")
	assert.False(t, visibleEarly.Load(), "player visible during PermissionsSetupEvent")
}

func TestLoginWithoutServers(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)
	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, noAvailableServers.Content, disconnectText(t, d))
	c.requireClosed()
}

func TestPlayerInfoQuery(t *testing.T) {
	p := startProxy(t, testConfig(nil), nil, nil)

	// A vanilla 1.13+ client does not understand the query.
	c := p.dial(t)
	c.beginLogin(version.Minecraft_1_13_2.Protocol, "Alice")
	query, ok := c.read().(*packet.LoginPluginMessage)
	require.True(t, ok)
	assert.Equal(t, PlayerInfoChannel, query.Channel)
	c.write(&packet.LoginPluginResponse{ID: query.ID, Success: false})
	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, noAvailableServers.Content, disconnectText(t, d))

	// Another proxy answers it.
	c = p.dial(t)
	c.beginLogin(version.Minecraft_1_13_2.Protocol, "Bob")
	query = c.read().(*packet.LoginPluginMessage)
	c.write(&packet.LoginPluginResponse{ID: query.ID, Success: true})
	d, ok = c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, proxyBehindProxy.Content, disconnectText(t, d))
}

//
//
//

// sessionServer is a fake session server answering hasJoined requests with status.
type sessionServer struct {
	*httptest.Server
	requests atomic.Int32
}

func startSessionServer(t *testing.T, status int, gp *profile.GameProfile) (*sessionServer, auth.Authenticator) {
	t.Helper()
	s := &sessionServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(gp)
	}))
	t.Cleanup(s.Close)

	base, err := url.Parse(s.URL + "/session/minecraft/hasJoined")
	require.NoError(t, err)
	authn, err := auth.New(auth.Options{
		HasJoinedURLFn: auth.CustomHasJoinedURL(base),
		Client:         s.Client(),
	})
	require.NoError(t, err)
	return s, authn
}

// answerEncryption reads the EncryptionRequest and returns the response
// with the given verify token; a nil token echoes the requested one.
func (c *testPeer) answerEncryption(secret, token []byte) {
	c.t.Helper()
	req, ok := c.read().(*packet.EncryptionRequest)
	require.True(c.t, ok, "expected EncryptionRequest")
	require.Len(c.t, req.VerifyToken, 4)
	pub, err := x509.ParsePKIXPublicKey(req.PublicKey)
	require.NoError(c.t, err)
	rsaPub := pub.(*rsa.PublicKey)
	if token == nil {
		token = req.VerifyToken
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, token)
	require.NoError(c.t, err)
	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, secret)
	require.NoError(c.t, err)
	c.write(&packet.EncryptionResponse{SharedSecret: encSecret, VerifyToken: encToken})
}

func onlineConfig() *config.Config {
	cfg := testConfig(nil)
	cfg.OnlineMode = true
	return cfg
}

func TestOnlineLoginVerifyTokenMismatch(t *testing.T) {
	sessions, authn := startSessionServer(t, http.StatusOK, nil)
	p := startProxy(t, onlineConfig(), nil, authn)

	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")
	c.answerEncryption([]byte("0123456789abcdef"), []byte{9, 9, 9, 9})
	c.requireClosed()
	assert.Zero(t, sessions.requests.Load(), "mismatching token must not reach the session server")
}

func TestOnlineLoginOfflineClient(t *testing.T) {
	sessions, authn := startSessionServer(t, http.StatusNoContent, nil)
	p := startProxy(t, onlineConfig(), nil, authn)

	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")
	c.answerEncryption([]byte("0123456789abcdef"), nil)

	// Encryption was never enabled, the disconnect is readable in plain.
	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, onlineModeOnly.Content, disconnectText(t, d))
	assert.EqualValues(t, 1, sessions.requests.Load())
}

func TestOnlineLoginSessionServerError(t *testing.T) {
	_, authn := startSessionServer(t, http.StatusInternalServerError, nil)
	p := startProxy(t, onlineConfig(), nil, authn)

	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")
	c.answerEncryption([]byte("0123456789abcdef"), nil)

	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, unableAuthWithMojang.Content, disconnectText(t, d))
}

func TestOnlineLoginEnablesEncryption(t *testing.T) {
	gp := &profile.GameProfile{ID: uuid.New(), Name: "Alice"}
	_, authn := startSessionServer(t, http.StatusOK, gp)
	mgr := event.New()
	profiles := make(chan *GameProfileRequestEvent, 1)
	event.Subscribe(mgr, 0, func(e *GameProfileRequestEvent) { profiles <- e })
	p := startProxy(t, onlineConfig(), mgr, authn)

	c := p.dial(t)
	c.beginLogin(testProtocol, "Alice")
	secret := []byte("0123456789abcdef")
	c.answerEncryption(secret, nil)

	encrypted, err := codec.NewEncryptWriter(c.conn, secret)
	require.NoError(t, err)
	c.enc.SetWriter(encrypted)
	decrypted, err := codec.NewDecryptReader(c.conn, secret)
	require.NoError(t, err)
	c.dec.SetReader(decrypted)

	select {
	case e := <-profiles:
		assert.True(t, e.OnlineMode())
		assert.Equal(t, gp.ID, e.GameProfile().ID)
	case <-time.After(testTimeout):
		t.Fatal("no GameProfileRequestEvent")
	}

	// No server is configured, the disconnect arrives encrypted.
	d, ok := c.read().(*packet.Disconnect)
	require.True(t, ok)
	assert.Equal(t, noAvailableServers.Content, disconnectText(t, d))
}
