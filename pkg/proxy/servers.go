package proxy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dualspiral/velocity/pkg/util/netutil"
	"github.com/dualspiral/velocity/pkg/util/validation"
)

// Errors returned by Proxy.Register.
var (
	ErrServerAlreadyExists = errors.New("server already exists")
	ErrInvalidServerInfo   = errors.New("invalid server info")
)

// serverRegistry holds the registered backends keyed by lower case name.
type serverRegistry struct {
	mu     sync.RWMutex
	byName map[string]*registeredServer
}

func newServerRegistry() *serverRegistry {
	return &serverRegistry{byName: make(map[string]*registeredServer)}
}

func serverKey(name string) string { return strings.ToLower(name) }

func (r *serverRegistry) get(name string) *registeredServer {
	r.mu.RLock()
	rs := r.byName[serverKey(name)]
	r.mu.RUnlock()
	return rs
}

func (r *serverRegistry) all() []RegisteredServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredServer, 0, len(r.byName))
	for _, rs := range r.byName {
		out = append(out, rs)
	}
	return out
}

// add stores info unless its name is taken, in which case the holder of the
// name is returned with false.
func (r *serverRegistry) add(info ServerInfo) (*registeredServer, bool) {
	key := serverKey(info.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, taken := r.byName[key]; taken {
		return held, false
	}
	rs := newRegisteredServer(info)
	r.byName[key] = rs
	return rs, true
}

// remove drops the server named like info if its address matches too.
func (r *serverRegistry) remove(info ServerInfo) bool {
	key := serverKey(info.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok := r.byName[key]; ok && ServerInfoEqual(rs.ServerInfo(), info) {
		delete(r.byName, key)
		return true
	}
	return false
}

func checkServerInfo(info ServerInfo) error {
	switch {
	case info == nil:
		return fmt.Errorf("%w: nil", ErrInvalidServerInfo)
	case !validation.ValidServerName(info.Name()):
		return fmt.Errorf("%w: name %q", ErrInvalidServerInfo, info.Name())
	case info.Addr() == nil:
		return fmt.Errorf("%w: no address for %q", ErrInvalidServerInfo, info.Name())
	}
	return nil
}

// serverInfoFromConfig turns an entry of the servers config map into a ServerInfo.
func serverInfoFromConfig(name, addr string) (ServerInfo, error) {
	if err := validation.ValidHostPort(addr); err != nil {
		return nil, fmt.Errorf("server %q has a bad address %q: %w", name, addr, err)
	}
	return NewServerInfo(name, netutil.NewAddr(addr, "tcp")), nil
}

// Register adds a backend to the proxy. A server already registered under the
// same name, compared case-insensitively, is returned with ErrServerAlreadyExists.
func (p *Proxy) Register(info ServerInfo) (RegisteredServer, error) {
	if err := checkServerInfo(info); err != nil {
		return nil, err
	}
	rs, added := p.servers.add(info)
	if !added {
		return rs, ErrServerAlreadyExists
	}
	p.log.V(1).Info("server registered", "name", info.Name(), "addr", info.Addr())
	return rs, nil
}

// Unregister removes the server whose name and address equal info.
// It reports whether such a server was registered.
func (p *Proxy) Unregister(info ServerInfo) bool {
	if info == nil || !p.servers.remove(info) {
		return false
	}
	p.log.V(1).Info("server unregistered", "name", info.Name(), "addr", info.Addr())
	return true
}

// Server looks up a registered server by name, ignoring case. It is nil if
// there is none.
func (p *Proxy) Server(name string) RegisteredServer {
	if rs := p.servers.get(name); rs != nil {
		return rs
	}
	return nil
}

// Servers lists the registered servers in no particular order.
func (p *Proxy) Servers() []RegisteredServer { return p.servers.all() }
