package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pires/go-proxyproto"
	"github.com/robinbraemer/event"
	"go.minekube.com/common/minecraft/component"
	"go.minekube.com/common/minecraft/component/codec/legacy"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/dualspiral/velocity/pkg/auth"
	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/addrquota"
	"github.com/dualspiral/velocity/pkg/internal/cachutil"
	"github.com/dualspiral/velocity/pkg/internal/reload"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/util/errs"
	"github.com/dualspiral/velocity/pkg/util/favicon"
	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// Options configure New.
type Options struct {
	// Config must have passed config.Validate.
	Config *config.Config
	// EventMgr receives the proxy's events. Defaults to a fresh event.New().
	EventMgr event.Manager
	// Logger defaults to logr.Discard().
	Logger logr.Logger
	// Authenticator checks online mode logins. Defaults to one with a
	// generated key pair.
	Authenticator auth.Authenticator
}

// ErrProxyAlreadyRun is returned by Proxy.Start on a second call.
var ErrProxyAlreadyRun = errors.New("proxy was already run, create a new one")

// Proxy accepts Minecraft clients and relays them to registered backends.
type Proxy struct {
	log           logr.Logger
	cfg           *config.Config
	event         event.Manager
	authenticator auth.Authenticator

	// status and shutdown texts parsed from cfg
	motd           *component.Text
	favicon        favicon.Favicon
	shutdownReason *component.Text

	statusCache *cachutil.Cache[proto.Protocol, *ServerPing]
	servers     *serverRegistry
	players     *playerDirectory

	connectionsQuota *addrquota.Quota // nil if disabled
	deps             *sessionHandlerDeps

	started   atomic.Bool
	closeOnce sync.Once
}

// New builds a Proxy from options. The proxy does nothing until Start.
func New(options Options) (*Proxy, error) {
	c := options.Config
	if c == nil {
		return nil, errs.ErrMissingConfig
	}
	p := &Proxy{
		log:           options.Logger,
		cfg:           c,
		event:         options.EventMgr,
		authenticator: options.Authenticator,
		servers:       newServerRegistry(),
		players:       newPlayerDirectory(),
	}
	if p.log.GetSink() == nil {
		p.log = logr.Discard()
	}
	if p.event == nil {
		p.event = event.New()
	}
	if p.authenticator == nil {
		authn, err := auth.New(auth.Options{PreventProxyConnections: c.ShouldPreventClientProxyConnections})
		if err != nil {
			return nil, fmt.Errorf("create authenticator: %w", err)
		}
		p.authenticator = authn
	}
	if err := p.loadTexts(); err != nil {
		return nil, err
	}

	ttl := time.Duration(c.Status.CacheTTL) * time.Millisecond
	p.statusCache = cachutil.New(ttl, func(protocol proto.Protocol) (*ServerPing, error) {
		return newInitialPing(p, protocol), nil
	})
	if q := c.Quota.Connections; q.Enabled {
		p.connectionsQuota = addrquota.NewQuota(q.OPS, q.Burst, q.MaxEntries)
	}
	p.deps = &sessionHandlerDeps{
		proxy:         p,
		players:       p.players,
		eventMgr:      p.event,
		cfg:           c,
		authenticator: p.authenticator,
	}
	if q := c.Quota.Logins; q.Enabled {
		p.deps.loginsQuota = addrquota.NewQuota(q.OPS, q.Burst, q.MaxEntries)
	}

	for name, addr := range c.Servers {
		info, err := serverInfoFromConfig(name, addr)
		if err != nil {
			return nil, err
		}
		if _, err = p.Register(info); err != nil {
			return nil, fmt.Errorf("register server %q: %w", name, err)
		}
	}
	p.log.V(1).Info("servers from config registered", "count", len(c.Servers))

	reload.OnReload(p.event, p.onConfigReload)
	return p, nil
}

// loadTexts parses the motd, favicon and shutdown reason of the config.
func (p *Proxy) loadTexts() (err error) {
	s := p.cfg
	if s.Status.Motd != "" {
		if p.motd, err = parseTextComponentFromConfig(s.Status.Motd); err != nil {
			return fmt.Errorf("status motd: %w", err)
		}
	}
	if s.Status.Favicon != "" {
		if p.favicon, err = favicon.Parse(s.Status.Favicon); err != nil {
			return fmt.Errorf("status favicon: %w", err)
		}
	}
	if s.ShutdownReason != "" {
		if p.shutdownReason, err = parseTextComponentFromConfig(s.ShutdownReason); err != nil {
			return fmt.Errorf("shutdown reason: %w", err)
		}
	}
	return nil
}

// parseTextComponentFromConfig reads a json text component if s starts with
// a brace and legacy section sign formatting otherwise.
func parseTextComponentFromConfig(s string) (*component.Text, error) {
	var (
		c   component.Component
		err error
	)
	if strings.HasPrefix(s, "{") {
		c, err = util.JsonCodec(0).Unmarshal([]byte(s))
	} else {
		c, err = (&legacy.Legacy{}).Unmarshal([]byte(s))
	}
	if err != nil {
		return nil, err
	}
	if t, ok := c.(*component.Text); ok {
		return t, nil
	}
	return nil, fmt.Errorf("want a text component, got %T", c)
}

// Start serves the configured bind address until ctx is done or listening
// fails, then shuts the proxy down. Only the first call runs the proxy.
func (p *Proxy) Start(ctx context.Context) error {
	if p.started.Swap(true) {
		return ErrProxyAlreadyRun
	}
	defer func() {
		var reason component.Component
		if p.shutdownReason != nil {
			reason = p.shutdownReason
		}
		p.Shutdown(reason)
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := p.initMeter(); err != nil {
			p.log.Error(err, "metrics unavailable")
		}
		return nil
	})
	eg.Go(func() error { return p.listenAndServe(ctx, p.cfg.Bind) })
	return eg.Wait()
}

// Shutdown kicks every player with reason, which may be nil, and then waits
// for pending event subscribers. Later calls block until the first is done.
func (p *Proxy) Shutdown(reason component.Component) {
	p.closeOnce.Do(func() {
		log := p.log.WithName("shutdown")
		log.Info("shutting down")

		pre := &PreShutdownEvent{reason: reason}
		p.event.Fire(pre)

		log.Info("disconnecting players", "count", p.PlayerCount())
		p.DisconnectAll(pre.Reason())

		p.event.Fire(&ShutdownEvent{})
		p.event.Wait()
		log.Info("shutdown complete")
	})
}

func (p *Proxy) listenAndServe(ctx context.Context, addr string) error {
	if ctx.Err() != nil {
		return nil
	}
	ln, err := new(net.ListenConfig).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if p.cfg.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	p.log.Info("accepting connections", "addr", ln.Addr(), "proxyProtocol", p.cfg.ProxyProtocol)
	p.event.Fire(&ReadyEvent{addr: ln.Addr()})
	for {
		conn, err := ln.Accept()
		switch {
		case err == nil:
			go p.HandleConn(conn)
		case errs.IsConnClosedErr(err):
			return nil
		default:
			return fmt.Errorf("accept: %w", err)
		}
	}
}

// HandleConn serves a client connection nothing was read from yet and
// returns when it is closed.
func (p *Proxy) HandleConn(raw net.Conn) {
	remote := raw.RemoteAddr()
	if p.connectionsQuota != nil && p.connectionsQuota.Blocked(remote) {
		p.log.V(1).Info("too many connections, dropping", "remoteAddr", remote)
		_ = raw.Close()
		return
	}
	cfg := p.cfg
	ctx := logr.NewContext(context.Background(), p.log.WithName("netmc").WithValues("remoteAddr", remote))
	conn, run := netmc.NewMinecraftConn(ctx, raw, proto.ServerBound,
		time.Duration(cfg.ReadTimeout)*time.Millisecond,
		time.Duration(cfg.ConnectionTimeout)*time.Millisecond,
		cfg.Compression.Level)
	conn.SetSessionHandler(newHandshakeSessionHandler(conn, p.deps))
	run()
}

// Event is the manager the proxy fires its events on.
func (p *Proxy) Event() event.Manager { return p.event }

// Config returns a copy of the proxy's config.
func (p *Proxy) Config() config.Config { return *p.cfg }

// DisconnectAll kicks every online player at once and returns when all are gone.
func (p *Proxy) DisconnectAll(reason component.Component) {
	var wg sync.WaitGroup
	for _, player := range p.players.Players() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			player.Disconnect(reason)
		}()
	}
	wg.Wait()
}

// PlayerCount is the number of online players.
func (p *Proxy) PlayerCount() int { return p.players.Count() }

// Players lists the online players.
func (p *Proxy) Players() []Player {
	online := p.players.Players()
	out := make([]Player, len(online))
	for i, player := range online {
		out[i] = player
	}
	return out
}

// Player finds an online player by id, or returns nil.
func (p *Proxy) Player(id uuid.UUID) Player {
	if player := p.players.Player(id); player != nil {
		return player
	}
	return nil
}

// PlayerByName finds an online player by name ignoring case, or returns nil.
func (p *Proxy) PlayerByName(username string) Player {
	if player := p.players.PlayerByName(username); player != nil {
		return player
	}
	return nil
}
