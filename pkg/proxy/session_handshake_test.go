package proxy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/netmc"
	"github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/state"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
	"github.com/dualspiral/velocity/pkg/util/favicon"
	"github.com/dualspiral/velocity/pkg/util/modinfo"
)

func TestCleanVirtualHost(t *testing.T) {
	for in, expected := range map[string]string{
		"play.example.com":            "play.example.com",
		"play.example.com.":           "play.example.com",
		"play.example.com\x00FML\x00": "play.example.com",
		"mc.example.com.\x00FML2\x00": "mc.example.com",
		"":                            "",
	} {
		assert.Equal(t, expected, cleanVirtualHost(in), "%q", in)
	}
}

func TestHandshakeConnectionType(t *testing.T) {
	legacyForge := &packet.Handshake{
		ProtocolVersion: int(version.Minecraft_1_12_2.Protocol),
		ServerAddress:   "localhost" + legacyForgeHandshakeToken,
	}
	assert.Equal(t, netmc.LegacyForge, handshakeConnectionType(legacyForge))

	// The token has no meaning from 1.13 on.
	modern := &packet.Handshake{
		ProtocolVersion: int(version.Minecraft_1_13.Protocol),
		ServerAddress:   "localhost" + legacyForgeHandshakeToken,
	}
	assert.Equal(t, netmc.Vanilla, handshakeConnectionType(modern))

	vanilla := &packet.Handshake{
		ProtocolVersion: int(version.Minecraft_1_8.Protocol),
		ServerAddress:   "localhost",
	}
	assert.Equal(t, netmc.Vanilla, handshakeConnectionType(vanilla))
}

func TestStateForProtocol(t *testing.T) {
	assert.Same(t, state.Status, stateForProtocol(1))
	assert.Same(t, state.Login, stateForProtocol(2))
	assert.Nil(t, stateForProtocol(0))
	assert.Nil(t, stateForProtocol(3))
}

func TestInitialPing(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.AnnounceForge = true
	p := &Proxy{cfg: &cfg, players: newPlayerDirectory(), favicon: favicon.FromPNG([]byte{1, 2, 3})}
	var err error
	p.motd, err = parseTextComponentFromConfig("§aHello")
	require.NoError(t, err)

	ping := newInitialPing(p, version.Minecraft_1_12_2.Protocol)
	assert.Equal(t, version.Minecraft_1_12_2.Protocol, ping.Version.Protocol)
	assert.Equal(t, cfg.Status.ShowMaxPlayers, ping.Players.Max)
	assert.Zero(t, ping.Players.Online)
	assert.Same(t, modinfo.Default, ping.ModInfo)
	assert.Equal(t, "data:image/png;base64,AQID", ping.Favicon)

	// An unsupported client is told the newest version.
	ping = newInitialPing(p, 5)
	assert.Equal(t, version.MaximumVersion.Protocol, ping.Version.Protocol)

	b, err := json.Marshal(ping)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Contains(t, decoded, "description")
	assert.Contains(t, decoded, "modinfo")
	assert.Equal(t, map[string]any{"online": float64(0), "max": float64(500)}, decoded["players"])
}

func TestInitialPingWithoutMotd(t *testing.T) {
	cfg := config.DefaultConfig
	p := &Proxy{cfg: &cfg, players: newPlayerDirectory()}

	ping := newInitialPing(p, version.Minecraft_1_15_2.Protocol)
	assert.Nil(t, ping.Description)
	assert.Nil(t, ping.ModInfo)
	assert.Empty(t, ping.Favicon)

	b, err := json.Marshal(ping)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"description":`)
	assert.NotContains(t, string(b), `"favicon"`)
}

func TestParseTextComponentFromConfig(t *testing.T) {
	text, err := parseTextComponentFromConfig(`{"text":"json motd"}`)
	require.NoError(t, err)
	assert.Equal(t, "json motd", text.Content)

	text, err = parseTextComponentFromConfig("legacy motd")
	require.NoError(t, err)
	assert.Equal(t, "legacy motd", util.MarshalPlain(text))

	_, err = parseTextComponentFromConfig(`{"translate":"a.b"}`)
	assert.Error(t, err)
}
