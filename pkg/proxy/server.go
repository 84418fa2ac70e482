package proxy

import (
	"fmt"
	"net"
	"sync"

	"github.com/zyedidia/generic/mapset"
)

// Players is a concurrently readable set of players.
type Players interface {
	Len() int
	// Range calls fn for each player until fn returns false. Players who
	// join or leave meanwhile may be missed.
	Range(fn func(p Player) bool)
}

type playerSet struct {
	mu  sync.RWMutex
	set mapset.Set[*connectedPlayer]
}

func newPlayerSet() *playerSet { return &playerSet{set: mapset.New[*connectedPlayer]()} }

func (s *playerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Size()
}

func (s *playerSet) Range(fn func(p Player) bool) {
	for _, p := range s.snapshot() {
		if !fn(p) {
			return
		}
	}
}

func (s *playerSet) snapshot() []*connectedPlayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*connectedPlayer, 0, s.set.Size())
	s.set.Each(func(p *connectedPlayer) { list = append(list, p) })
	return list
}

func (s *playerSet) add(p *connectedPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Put(p)
}

func (s *playerSet) remove(p *connectedPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Remove(p)
}

// ServerInfo names a backend server and where to reach it.
type ServerInfo interface {
	Name() string
	Addr() net.Addr
}

// NewServerInfo returns an immutable ServerInfo.
func NewServerInfo(name string, addr net.Addr) ServerInfo {
	return serverInfo{name: name, addr: addr}
}

// ServerInfoEqual compares name and address. A nil info equals nothing.
func ServerInfoEqual(a, b ServerInfo) bool {
	if a == nil || b == nil || a.Name() != b.Name() {
		return false
	}
	x, y := a.Addr(), b.Addr()
	return x.Network() == y.Network() && x.String() == y.String()
}

type serverInfo struct {
	name string
	addr net.Addr
}

func (i serverInfo) Name() string   { return i.name }
func (i serverInfo) Addr() net.Addr { return i.addr }
func (i serverInfo) String() string { return fmt.Sprintf("%s (%s)", i.name, i.addr) }

// RegisteredServer is a backend server known to the proxy.
type RegisteredServer interface {
	ServerInfo() ServerInfo
	// Players is who plays on the server through this proxy.
	Players() Players
}

// RegisteredServerEqual reports whether a and b have equal infos.
func RegisteredServerEqual(a, b RegisteredServer) bool {
	return a != nil && b != nil && ServerInfoEqual(a.ServerInfo(), b.ServerInfo())
}

type registeredServer struct {
	info    ServerInfo
	players *playerSet
}

var _ RegisteredServer = (*registeredServer)(nil)

func newRegisteredServer(info ServerInfo) *registeredServer {
	return &registeredServer{info: info, players: newPlayerSet()}
}

func (r *registeredServer) ServerInfo() ServerInfo { return r.info }
func (r *registeredServer) Players() Players       { return r.players }
func (r *registeredServer) String() string         { return r.info.Name() }
