package proxy

import (
	"fmt"
	"strings"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/reload"
	"github.com/dualspiral/velocity/pkg/util/validation"
)

func (p *Proxy) onConfigReload(e *reload.ConfigReloadEvent[config.Config]) {
	if e.Config == nil {
		return
	}
	if e.Prev != nil && e.Prev.OnlineMode != e.Config.OnlineMode {
		p.log.Info("online mode changes apply after a restart", "onlineMode", e.Prev.OnlineMode)
	}
	if err := p.SyncServers(e.Config.Servers); err != nil {
		p.log.Error(err, "error applying reloaded servers")
	}
}

// SyncServers registers and unregisters servers until the registered servers
// match the given name to address map. Players stay connected to servers
// that got unregistered. Nothing changes if an entry is invalid.
func (p *Proxy) SyncServers(servers map[string]string) error {
	want := make(map[string]ServerInfo, len(servers))
	for name, addr := range servers {
		if !validation.ValidServerName(name) {
			return fmt.Errorf("%w: invalid name %q", ErrInvalidServerInfo, name)
		}
		info, err := serverInfoFromConfig(name, addr)
		if err != nil {
			return err
		}
		want[strings.ToLower(name)] = info
	}

	var added, removed int
	for _, rs := range p.Servers() {
		info := rs.ServerInfo()
		key := strings.ToLower(info.Name())
		if w, ok := want[key]; ok && ServerInfoEqual(w, info) {
			delete(want, key) // unchanged
			continue
		}
		if p.Unregister(info) {
			removed++
		}
	}
	for _, info := range want {
		if _, err := p.Register(info); err != nil {
			return fmt.Errorf("error registering server %q: %w", info.Name(), err)
		}
		added++
	}

	if added != 0 || removed != 0 {
		p.log.Info("updated registered servers", "added", added, "removed", removed, "total", len(servers))
	}
	return nil
}
