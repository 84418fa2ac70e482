package proxy

import (
	"fmt"
	"net"

	"github.com/robinbraemer/event"
	"go.minekube.com/common/minecraft/component"

	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/packet"
)

// Inbound is a client connection that may not have logged in yet.
type Inbound interface {
	Protocol() proto.Protocol
	// VirtualHost is the address the client typed in, as sent in its
	// Handshake. Mod loader markers are stripped.
	VirtualHost() net.Addr
	RemoteAddr() net.Addr
	Active() bool
	// Closed is closed together with the connection.
	Closed() <-chan struct{}
}

// initialInbound is the Inbound of a client until it became a player.
type initialInbound struct {
	netmc.MinecraftConn
	virtualHost net.Addr
}

var _ Inbound = (*initialInbound)(nil)

func newInitialInbound(c netmc.MinecraftConn, virtualHost net.Addr) *initialInbound {
	return &initialInbound{MinecraftConn: c, virtualHost: virtualHost}
}

func (i *initialInbound) VirtualHost() net.Addr   { return i.virtualHost }
func (i *initialInbound) Active() bool            { return !netmc.Closed(i.MinecraftConn) }
func (i *initialInbound) Closed() <-chan struct{} { return i.Context().Done() }

func (i *initialInbound) String() string {
	return fmt.Sprintf("%s via %s", i.RemoteAddr(), i.virtualHost)
}

// disconnect sends reason and closes. The client must be in the Login state.
func (i *initialInbound) disconnect(reason component.Component) error {
	return netmc.CloseWith(i.MinecraftConn, packet.DisconnectWith(reason, i.Protocol()))
}

// fireThen fires e off the connection's loop and runs then with the
// handled event back on the loop. If the connection closed in the
// meantime then is never run.
func fireThen[E any](mgr event.Manager, conn netmc.MinecraftConn, e E, then func(E)) {
	go func() {
		mgr.Fire(e)
		conn.Exec(func() {
			if netmc.Closed(conn) {
				return
			}
			then(e)
		})
	}()
}
