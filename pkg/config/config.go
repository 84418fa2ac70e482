// Package config contains the proxy configuration, its defaults and validation.
package config

import (
	"fmt"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/dualspiral/velocity/pkg/util/configutil"
	"github.com/dualspiral/velocity/pkg/util/validation"
)

// Config is the configuration of the proxy.
type Config struct {
	Bind string `yaml:"bind"` // The address to listen for connections.

	OnlineMode bool       `yaml:"onlineMode"`
	Forwarding Forwarding `yaml:"forwarding"`
	Status     Status     `yaml:"status"`
	// Whether the proxy should present itself as a
	// Forge/FML-compatible server. By default, this is disabled.
	AnnounceForge bool `yaml:"announceForge"`

	Servers map[string]string `yaml:"servers"` // name:address
	Try     []string          `yaml:"try"`     // Try server names order

	ConnectionTimeout int `yaml:"connectionTimeout"` // Dial and write timeout in milliseconds
	ReadTimeout       int `yaml:"readTimeout"`       // Idle read timeout in milliseconds

	Quota                               Quota       `yaml:"quota"`
	Compression                         Compression `yaml:"compression"`
	ProxyProtocol                       bool        `yaml:"proxyProtocol"`                       // ha-proxy compatibility
	ShouldPreventClientProxyConnections bool        `yaml:"shouldPreventClientProxyConnections"` // sends player ip to mojang

	Telemetry      Telemetry `yaml:"telemetry"`
	Debug          bool      `yaml:"debug"`
	ShutdownReason string    `yaml:"shutdownReason"` // Legacy formatted text
	// AutoReload watches the config file and applies
	// changes of the servers list without a restart.
	AutoReload bool `yaml:"autoReload"`
}

type (
	Status struct {
		ShowMaxPlayers int    `yaml:"showMaxPlayers"`
		Motd           string `yaml:"motd"`     // Legacy formatted text
		CacheTTL       int    `yaml:"cacheTTL"` // Status response cache duration in milliseconds, 0 disables it
		// Favicon is a png or jpeg file path or a "data:image/png;base64," uri.
		// Larger images are scaled down to 64x64.
		Favicon        string `yaml:"favicon"`
	}
	Forwarding struct {
		Mode           ForwardingMode `yaml:"mode"`
		VelocitySecret string         `yaml:"velocitySecret"` // Used with "velocity" mode
	}
	Compression struct {
		Threshold int `yaml:"threshold"`
		Level     int `yaml:"level"`
	}
	// Quota is the config for rate limiting.
	Quota struct {
		Connections QuotaSettings `yaml:"connections"` // Limits new connections per second, per IP block.
		Logins      QuotaSettings `yaml:"logins"`      // Limits logins per second, per IP block.
	}
	QuotaSettings struct {
		Enabled    bool    `yaml:"enabled"`    // If false, there is no such limiting.
		OPS        float32 `yaml:"ops"`        // Allowed operations/events per second, per IP block
		Burst      int     `yaml:"burst"`      // The maximum events per second, per block; the size of the token bucket
		MaxEntries int     `yaml:"maxEntries"` // Maximum number of IP blocks to keep track of in cache
	}
	// Telemetry configures the OpenTelemetry exporter.
	Telemetry struct {
		Enabled     bool   `yaml:"enabled"`
		ServiceName string `yaml:"serviceName"`
	}
)

// ForwardingMode is a player info forwarding mode.
type ForwardingMode string

const (
	NoneForwardingMode   ForwardingMode = "none"
	LegacyForwardingMode ForwardingMode = "legacy"
	// A forwarding mode specified by the Velocity proxy and
	// supported by PaperSpigot for versions starting at 1.13.
	VelocityForwardingMode ForwardingMode = "velocity"
)

// DefaultConfig is the config used when no config file overrides a value.
var DefaultConfig = Config{
	Bind:       "0.0.0.0:25577",
	OnlineMode: true,
	Forwarding: Forwarding{
		Mode: NoneForwardingMode,
	},
	Status: Status{
		ShowMaxPlayers: 500,
		Motd:           "§3A Velocity Server",
		CacheTTL:       1000,
	},
	Servers: map[string]string{
		"lobby":     "127.0.0.1:30066",
		"factions":  "127.0.0.1:30067",
		"minigames": "127.0.0.1:30068",
	},
	Try:               []string{"lobby"},
	ConnectionTimeout: 5000,
	ReadTimeout:       30000,
	Quota: Quota{
		// Default quotas should never affect legitimate operations,
		// but rate limits aggressive behaviours.
		Connections: QuotaSettings{Enabled: true, OPS: 5, Burst: 10, MaxEntries: 1000},
		Logins:      QuotaSettings{Enabled: true, OPS: 0.4, Burst: 3, MaxEntries: 1000},
	},
	Compression: Compression{
		Threshold: 256,
		Level:     -1,
	},
	Telemetry: Telemetry{
		ServiceName: "velocity",
	},
	ShutdownReason: "§cProxy shutting down.",
}

// SetDefaults publishes the DefaultConfig values as Viper defaults.
func SetDefaults(i configutil.SetDefault) {
	d := DefaultConfig
	i.SetDefault("bind", d.Bind)
	i.SetDefault("onlineMode", d.OnlineMode)
	i.SetDefault("forwarding.mode", d.Forwarding.Mode)
	i.SetDefault("forwarding.velocitySecret", d.Forwarding.VelocitySecret)
	i.SetDefault("announceForge", d.AnnounceForge)

	i.SetDefault("status.showMaxPlayers", d.Status.ShowMaxPlayers)
	i.SetDefault("status.motd", d.Status.Motd)
	i.SetDefault("status.cacheTTL", d.Status.CacheTTL)
	i.SetDefault("status.favicon", d.Status.Favicon)

	i.SetDefault("servers", d.Servers)
	i.SetDefault("try", d.Try)

	i.SetDefault("connectionTimeout", d.ConnectionTimeout)
	i.SetDefault("readTimeout", d.ReadTimeout)

	for key, q := range map[string]QuotaSettings{
		"quota.connections": d.Quota.Connections,
		"quota.logins":      d.Quota.Logins,
	} {
		p := configutil.WithPrefix(key, i)
		p.SetDefault("enabled", q.Enabled)
		p.SetDefault("ops", q.OPS)
		p.SetDefault("burst", q.Burst)
		p.SetDefault("maxEntries", q.MaxEntries)
	}

	i.SetDefault("compression.threshold", d.Compression.Threshold)
	i.SetDefault("compression.level", d.Compression.Level)
	i.SetDefault("proxyProtocol", d.ProxyProtocol)
	i.SetDefault("shouldPreventClientProxyConnections", d.ShouldPreventClientProxyConnections)

	i.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	i.SetDefault("telemetry.serviceName", d.Telemetry.ServiceName)
	i.SetDefault("debug", d.Debug)
	i.SetDefault("shutdownReason", d.ShutdownReason)
	i.SetDefault("autoReload", d.AutoReload)
}

// Validate validates Config.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...any) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...any) { warns = append(warns, fmt.Errorf(m, args...)) }

	if c == nil {
		e("config must not be nil")
		return
	}

	if len(c.Bind) == 0 {
		e("Bind is empty")
	} else if err := validation.ValidHostPort(c.Bind); err != nil {
		e("Invalid bind %q: %v", c.Bind, err)
	}

	if !c.OnlineMode {
		w("Proxy is running in offline mode!")
	}

	switch c.Forwarding.Mode {
	case NoneForwardingMode:
		w("Player forwarding is disabled! Backend servers will have players with " +
			"offline-mode UUIDs and the same IP as the proxy.")
	case LegacyForwardingMode:
	case VelocityForwardingMode:
		if len(c.Forwarding.VelocitySecret) == 0 {
			e("Forwarding mode %q requires a velocitySecret", c.Forwarding.Mode)
		}
	default:
		e("Unknown forwarding mode %q, must be one of none,legacy,velocity", c.Forwarding.Mode)
	}

	if len(c.Servers) == 0 {
		w("No backend servers configured.")
	}

	for name, addr := range c.Servers {
		if !validation.ValidServerName(name) {
			e("Invalid server name format %q: %s and length be 1-%d", name,
				validation.QualifiedNameErrMsg, validation.QualifiedNameMaxLength)
		}
		if err := validation.ValidHostPort(addr); err != nil {
			e("Invalid address %q for server %q: %w", addr, name, err)
		}
	}

	for _, name := range c.Try {
		if _, ok := c.Servers[name]; !ok {
			if hint := c.closestServer(name); hint != "" {
				e("Fallback/try server %q must be registered under servers, did you mean %q?", name, hint)
			} else {
				e("Fallback/try server %q must be registered under servers", name)
			}
		}
	}

	if c.ConnectionTimeout <= 0 {
		e("Invalid connectionTimeout %dms: must be > 0", c.ConnectionTimeout)
	}
	if c.ReadTimeout <= 0 {
		e("Invalid readTimeout %dms: must be > 0", c.ReadTimeout)
	}

	if c.Compression.Level < -1 || c.Compression.Level > 9 {
		e("Unsupported compression level %d: must be -1..9", c.Compression.Level)
	} else if c.Compression.Level == 0 {
		w("All packets going through the proxy are uncompressed, this increases bandwidth usage.")
	}

	if c.Compression.Threshold < -1 {
		e("Invalid compression threshold %d: must be >= -1", c.Compression.Threshold)
	} else if c.Compression.Threshold == 0 {
		w("All packets going through the proxy will be compressed, this lowers bandwidth, " +
			"but has lower throughput and increases CPU usage.")
	}

	for _, quota := range []QuotaSettings{c.Quota.Connections, c.Quota.Logins} {
		if quota.Enabled {
			if quota.OPS <= 0 {
				e("Invalid quota ops %v, use a number > 0", quota.OPS)
			}
			if quota.Burst < 1 {
				e("Invalid quota burst %d, use a number >= 1", quota.Burst)
			}
			if quota.MaxEntries < 1 {
				e("Invalid quota max entries %d, use a number >= 1", quota.MaxEntries)
			}
		}
	}

	if c.Status.CacheTTL < 0 {
		e("Invalid status cacheTTL %dms: must be >= 0", c.Status.CacheTTL)
	}

	return
}

// closestServer returns the registered server name most similar to name,
// or empty if none is similar enough to be a typo.
func (c *Config) closestServer(name string) string {
	const minSimilarity = 0.5
	names := make([]string, 0, len(c.Servers))
	for n := range c.Servers {
		names = append(names, n)
	}
	sort.Strings(names)

	var (
		best      string
		bestScore float64
	)
	for _, n := range names {
		if score := levenshtein.Similarity(name, n, nil); score > bestScore {
			best, bestScore = n, score
		}
	}
	if bestScore < minSimilarity {
		return ""
	}
	return best
}
