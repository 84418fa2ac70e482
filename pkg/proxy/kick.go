package proxy

import (
	"fmt"

	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/util"
)

// The functions below decide what happens to a player who lost a backend,
// either the one they play on or one they were moving to. None of them may
// run on the client loop since they wait for it.

// handleConnectionErr reacts to a backend that could not be reached or
// whose connection broke.
func (p *connectedPlayer) handleConnectionErr(server RegisteredServer, err error, safe bool) {
	name := server.ServerInfo().Name()
	log := p.log.WithValues("server", name, "serverAddr", server.ServerInfo().Addr())
	if !p.Active() {
		log.V(1).Info("player left before the backend failure was handled", "error", err)
		return
	}
	msg := fmt.Sprintf("Unable to connect to %q. Try again later.", name)
	if p.onServer(server) {
		msg = fmt.Sprintf("Your connection to %q encountered an error.", name)
		log.V(1).Info("connection to current server failed", "error", err)
	} else {
		log.Info("unable to connect to server", "error", err)
	}
	p.recoverFrom(server, nil, redText(msg), safe)
}

func (p *connectedPlayer) handleDisconnect(server RegisteredServer, d *packet.Disconnect, safe bool) {
	p.handleDisconnectWithReason(server, disconnectReason(p.log, d, p.Protocol()), safe)
}

// handleDisconnectWithReason reacts to a backend that sent the player away.
func (p *connectedPlayer) handleDisconnectWithReason(server RegisteredServer, reason component.Component, safe bool) {
	if !p.Active() {
		return
	}
	if reason == nil {
		reason = &component.Text{}
	}
	name := server.ServerInfo().Name()
	log := p.log.WithValues("server", name, "reason", util.MarshalPlain(reason))
	if p.onServer(server) {
		log.Info("player was kicked from server")
		p.recoverFrom(server, reason, &component.Text{
			Content: movedToNewServer.Content,
			S:       movedToNewServer.S,
			Extra:   []component.Component{reason},
		}, safe)
		return
	}
	log.Info("player was turned away by server while connecting")
	p.recoverFrom(server, reason, redText(fmt.Sprintf("Can't connect to server %q: ", name), reason), safe)
}

// recoverFrom presets the KickedFromServerEvent result and applies whatever
// the subscribers left.
//
// A player who lost their current backend, or never had one, is redirected to
// the next server to try and disconnected when none is left. A player whose
// switch failed stays where they are and reads friendly in chat. An unsafe
// failure always disconnects.
func (p *connectedPlayer) recoverFrom(server RegisteredServer, kickReason, friendly component.Component, safe bool) {
	if !p.Active() {
		return
	}
	if !safe {
		p.Disconnect(friendly)
		return
	}

	current := p.connectedServer()
	onCurrent := current == nil || RegisteredServerEqual(current.server, server)
	e := &KickedFromServerEvent{
		playerEvent:     playerEvent{p},
		server:          server,
		originalReason:  kickReason,
		onCurrentServer: onCurrent,
	}
	if onCurrent {
		e.result = p.fallbackResult(server, current == nil, friendly)
	} else {
		p.releaseSwitchTo(server)
		e.result = &NotifyKickResult{Message: friendly}
	}
	p.eventMgr.Fire(e)

	if onCurrent && !p.onLoop(func() { p.detachServer(server) }) {
		return
	}
	switch r := e.Result().(type) {
	case *RedirectPlayerKickResult:
		if r.Server == nil {
			p.Disconnect(friendly)
			return
		}
		p.redirect(r, friendly)
	case *NotifyKickResult:
		if onCurrent {
			// There is nothing to stay on.
			p.Disconnect(r.Message)
			return
		}
		_ = p.SendMessage(r.Message)
	case *DisconnectPlayerKickResult:
		p.Disconnect(r.Reason)
	default:
		p.Disconnect(friendly)
	}
}

// fallbackResult moves a player who lost server on to the next server to try.
func (p *connectedPlayer) fallbackResult(server RegisteredServer, neverJoined bool, friendly component.Component) ServerKickResult {
	if next := p.nextServerToTry(server); next != nil {
		return &RedirectPlayerKickResult{Server: next}
	}
	if neverJoined {
		return &DisconnectPlayerKickResult{Reason: noAvailableServersReason(friendly)}
	}
	return &DisconnectPlayerKickResult{Reason: friendly}
}

func (p *connectedPlayer) redirect(r *RedirectPlayerKickResult, friendly component.Component) {
	ctx, cancel := withConnectionTimeout(p.Context(), p.config().ConnectionTimeout)
	defer cancel()
	req := &connectionRequest{target: r.Server, player: p}
	res, err := req.connect(ctx)
	if err != nil {
		p.handleConnectionErr(r.Server, err, true)
		return
	}
	switch res.status {
	case SuccessConnectionStatus:
		_ = p.SendMessage(firstMessage(r.Message, friendly))
	case CanceledConnectionStatus:
		p.Disconnect(firstMessage(res.reason, r.Message, friendly))
	case ServerDisconnectedConnectionStatus:
		p.handleDisconnectWithReason(r.Server, firstMessage(res.reason, internalServerConnectionError), res.safe)
	}
	// AlreadyConnected and InProgress mean another switch took over.
}

// onServer reports whether the player plays on server.
func (p *connectedPlayer) onServer(server RegisteredServer) bool {
	sc := p.connectedServer()
	return sc != nil && RegisteredServerEqual(sc.server, server)
}

// releaseSwitchTo frees the in-flight slot if it belongs to server.
func (p *connectedPlayer) releaseSwitchTo(server RegisteredServer) {
	p.mu.Lock()
	if p.connInFlight != nil && RegisteredServerEqual(p.connInFlight.server, server) {
		p.connInFlight = nil
	}
	p.mu.Unlock()
}

func noAvailableServersReason(cause component.Component) component.Component {
	if cause == nil {
		return noAvailableServers
	}
	return &component.Text{
		Extra: []component.Component{noAvailableServers, &component.Text{Content: "\n"}, cause},
	}
}

func redText(content string, extra ...component.Component) *component.Text {
	t := red(content)
	t.Extra = extra
	return t
}

func firstMessage(candidates ...component.Component) component.Component {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
