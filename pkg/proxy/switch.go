package proxy

import (
	"context"
	"time"

	"go.minekube.com/common/minecraft/component"
)

// ConnectionRequest moves a player to another backend.
// Create one with Player.CreateConnectionRequest.
type ConnectionRequest interface {
	// Server is the backend the player should end up on.
	Server() RegisteredServer
	// Connect blocks until the player joined the backend, the attempt
	// failed or ctx is done. ctx only bounds the attempt itself, a
	// player that already joined stays there.
	//
	// The player is told nothing; the caller handles every outcome.
	Connect(ctx context.Context) (ConnectionResult, error)
	// ConnectWithIndication is Connect plus the proxy's own reaction to
	// failures (chat messages, redirects, kicks). It reports whether the
	// player joined the backend.
	ConnectWithIndication(ctx context.Context) (successful bool)
}

// ConnectionResult is the outcome of a ConnectionRequest.
type ConnectionResult interface {
	Status() ConnectionStatus
	// Reason is the disconnect reason of the backend, if it gave one.
	Reason() component.Component
}

// ConnectionStatus classifies a ConnectionResult.
type ConnectionStatus uint8

const (
	// SuccessConnectionStatus means the player is now on the backend.
	SuccessConnectionStatus ConnectionStatus = iota
	// AlreadyConnectedConnectionStatus means the player already was on the backend.
	AlreadyConnectedConnectionStatus
	// InProgressConnectionStatus means another switch of the player was not finished yet.
	InProgressConnectionStatus
	// CanceledConnectionStatus means a ServerPreConnectEvent subscriber denied the switch.
	CanceledConnectionStatus
	// ServerDisconnectedConnectionStatus means the backend turned the player
	// away during login. Reason may tell why.
	ServerDisconnectedConnectionStatus
)

var connectionStatusNames = [...]string{
	SuccessConnectionStatus:            "Success",
	AlreadyConnectedConnectionStatus:   "AlreadyConnected",
	InProgressConnectionStatus:         "InProgress",
	CanceledConnectionStatus:           "Canceled",
	ServerDisconnectedConnectionStatus: "ServerDisconnected",
}

func (s ConnectionStatus) String() string {
	if int(s) < len(connectionStatusNames) {
		return connectionStatusNames[s]
	}
	return "Unknown"
}

// Successful reports whether the player joined the backend.
func (s ConnectionStatus) Successful() bool { return s == SuccessConnectionStatus }

func (p *connectedPlayer) CreateConnectionRequest(server RegisteredServer) ConnectionRequest {
	return &connectionRequest{target: server, player: p}
}

type connectionRequest struct {
	target RegisteredServer
	player *connectedPlayer
}

func (r *connectionRequest) Server() RegisteredServer { return r.target }

func (r *connectionRequest) Connect(ctx context.Context) (ConnectionResult, error) {
	res, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// connect is Connect without the interface conversion. A result marked
// unsafe leaves the player in an unknown state and gets them disconnected.
func (r *connectionRequest) connect(ctx context.Context) (*connectionResult, error) {
	res, err := r.attempt(ctx)
	if err != nil {
		return nil, err
	}
	if !res.safe {
		r.player.handleConnectionErr(res.server, nil, false)
	}
	return res, nil
}

func (r *connectionRequest) ConnectWithIndication(ctx context.Context) bool {
	res, err := r.attempt(ctx)
	if err != nil {
		r.player.handleConnectionErr(r.target, err, true)
		return false
	}
	switch res.status {
	case AlreadyConnectedConnectionStatus:
		_ = r.player.SendMessage(alreadyConnected)
	case InProgressConnectionStatus:
		_ = r.player.SendMessage(alreadyInProgress)
	case ServerDisconnectedConnectionStatus:
		reason := res.reason
		if reason == nil {
			reason = internalServerConnectionError
		}
		r.player.handleDisconnectWithReason(res.server, reason, res.safe)
	}
	// A canceled switch was decided by an event subscriber, who also tells the player.
	return res.status.Successful()
}

// attempt runs one switch: the pre-connect event, the claim of the slot
// for an in-flight connection and the backend login.
func (r *connectionRequest) attempt(ctx context.Context) (*connectionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p := r.player
	if status, busy := p.switchBlocked(r.target); busy {
		return settled(status, r.target), nil
	}

	pre := newServerPreConnectEvent(p, r.target)
	p.eventMgr.Fire(pre)
	dest, ok := pre.Server().(*registeredServer)
	if !pre.Allowed() || !ok {
		return settled(CanceledConnectionStatus, r.target), nil
	}

	sc, status, claimed := p.claimSwitch(dest)
	if !claimed {
		return settled(status, dest), nil
	}
	defer p.releaseSwitch(sc)
	res, err := sc.connect(ctx)
	connectCount(dest, res, err)
	return res, err
}

// switchBlockedLocked reports why the player cannot move to target right
// now, if so. The caller holds p.mu.
func (p *connectedPlayer) switchBlockedLocked(target RegisteredServer) (ConnectionStatus, bool) {
	current := p.connectedServer_
	switch {
	case p.connInFlight != nil, current != nil && !current.joined.Load():
		return InProgressConnectionStatus, true
	case current != nil && RegisteredServerEqual(current.server, target):
		return AlreadyConnectedConnectionStatus, true
	}
	return 0, false
}

func (p *connectedPlayer) switchBlocked(target RegisteredServer) (ConnectionStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.switchBlockedLocked(target)
}

// claimSwitch checks target and, if the player is free to move, records the
// new connection as in flight in the same critical section.
func (p *connectedPlayer) claimSwitch(target *registeredServer) (*serverConnection, ConnectionStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, busy := p.switchBlockedLocked(target); busy {
		return nil, status, false
	}
	sc := newServerConnection(target, p)
	p.connInFlight = sc
	return sc, 0, true
}

// releaseSwitch frees the in-flight slot if sc still holds it.
func (p *connectedPlayer) releaseSwitch(sc *serverConnection) {
	p.mu.Lock()
	if p.connInFlight == sc {
		p.connInFlight = nil
	}
	p.mu.Unlock()
}

type connectionResult struct {
	status ConnectionStatus
	reason component.Component
	server RegisteredServer
	// safe is false if the player may have seen part of the new backend's
	// login and cannot stay on the proxy.
	safe bool
}

var _ ConnectionResult = (*connectionResult)(nil)

func (r *connectionResult) Status() ConnectionStatus    { return r.status }
func (r *connectionResult) Reason() component.Component { return r.reason }

// settled is a result the player can continue from.
func settled(status ConnectionStatus, server RegisteredServer) *connectionResult {
	return &connectionResult{status: status, server: server, safe: true}
}

func disconnectResult(reason component.Component, server RegisteredServer, safe bool) *connectionResult {
	return &connectionResult{status: ServerDisconnectedConnectionStatus, reason: reason, server: server, safe: safe}
}

// withConnectionTimeout bounds parent by timeoutMillis. A timeout of zero or
// less leaves parent unbounded but cancelable.
func withConnectionTimeout(parent context.Context, timeoutMillis int) (context.Context, context.CancelFunc) {
	if timeoutMillis <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, time.Duration(timeoutMillis)*time.Millisecond)
}
