package state

import (
	"github.com/dualspiral/velocity/pkg/proto"
	p "github.com/dualspiral/velocity/pkg/proto/packet"
	"github.com/dualspiral/velocity/pkg/proto/packet/plugin"
	v "github.com/dualspiral/velocity/pkg/proto/version"
)

// State is the phase a connection is in. Its value is the next state
// number a Handshake announces.
type State int

const (
	HandshakeState State = iota
	StatusState
	LoginState
	PlayState
)

var stateNames = [...]string{"Handshake", "Status", "Login", "Play"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UnknownState"
	}
	return stateNames[s]
}

// The packets of each state.
var (
	Handshake = NewRegistry(HandshakeState)
	Status    = NewRegistry(StatusState)
	Login     = NewRegistry(LoginState)
	Play      = NewRegistry(PlayState)
)

type mappings = []*PacketMapping

// packets lists every packet the proxy decodes. Everything else in play is
// relayed without decoding.
var packets = []struct {
	to     *PacketRegistry
	packet proto.Packet
	ids    mappings
}{
	{Handshake.ServerBound, &p.Handshake{}, mappings{since(v.Minecraft_1_8, 0x00)}},

	{Status.ServerBound, &p.StatusRequest{}, mappings{since(v.Minecraft_1_8, 0x00)}},
	{Status.ServerBound, &p.StatusPing{}, mappings{since(v.Minecraft_1_8, 0x01)}},
	{Status.ClientBound, &p.StatusResponse{}, mappings{since(v.Minecraft_1_8, 0x00)}},
	{Status.ClientBound, &p.StatusPing{}, mappings{since(v.Minecraft_1_8, 0x01)}},

	{Login.ServerBound, &p.ServerLogin{}, mappings{since(v.Minecraft_1_8, 0x00)}},
	{Login.ServerBound, &p.EncryptionResponse{}, mappings{since(v.Minecraft_1_8, 0x01)}},
	{Login.ServerBound, &p.LoginPluginResponse{}, mappings{since(v.Minecraft_1_13, 0x02)}},
	{Login.ClientBound, &p.Disconnect{}, mappings{since(v.Minecraft_1_8, 0x00)}},
	{Login.ClientBound, &p.EncryptionRequest{}, mappings{since(v.Minecraft_1_8, 0x01)}},
	{Login.ClientBound, &p.ServerLoginSuccess{}, mappings{since(v.Minecraft_1_8, 0x02)}},
	{Login.ClientBound, &p.SetCompression{}, mappings{since(v.Minecraft_1_8, 0x03)}},
	{Login.ClientBound, &p.LoginPluginMessage{}, mappings{since(v.Minecraft_1_13, 0x04)}},

	{Play.ServerBound, &p.KeepAlive{}, mappings{
		since(v.Minecraft_1_8, 0x00), since(v.Minecraft_1_9, 0x0B), since(v.Minecraft_1_12, 0x0C),
		since(v.Minecraft_1_12_1, 0x0B), since(v.Minecraft_1_13, 0x0E), since(v.Minecraft_1_14, 0x0F),
	}},
	{Play.ServerBound, &plugin.Message{}, mappings{
		since(v.Minecraft_1_8, 0x17), since(v.Minecraft_1_9, 0x09), since(v.Minecraft_1_12, 0x0A),
		since(v.Minecraft_1_12_1, 0x09), since(v.Minecraft_1_13, 0x0A), since(v.Minecraft_1_14, 0x0B),
	}},

	{Play.ClientBound, &p.KeepAlive{}, mappings{
		since(v.Minecraft_1_8, 0x00), since(v.Minecraft_1_9, 0x1F), since(v.Minecraft_1_13, 0x21),
		since(v.Minecraft_1_14, 0x20), since(v.Minecraft_1_15, 0x21),
	}},
	{Play.ClientBound, &p.JoinGame{}, mappings{
		since(v.Minecraft_1_8, 0x01), since(v.Minecraft_1_9, 0x23), since(v.Minecraft_1_13, 0x25),
		since(v.Minecraft_1_15, 0x26),
	}},
	{Play.ClientBound, &p.Respawn{}, mappings{
		since(v.Minecraft_1_8, 0x07), since(v.Minecraft_1_9, 0x33), since(v.Minecraft_1_12, 0x34),
		since(v.Minecraft_1_12_1, 0x35), since(v.Minecraft_1_13, 0x38), since(v.Minecraft_1_14, 0x3A),
		since(v.Minecraft_1_15, 0x3B),
	}},
	{Play.ClientBound, &p.Disconnect{}, mappings{
		since(v.Minecraft_1_8, 0x40), since(v.Minecraft_1_9, 0x1A), since(v.Minecraft_1_13, 0x1B),
		since(v.Minecraft_1_14, 0x1A), since(v.Minecraft_1_15, 0x1B),
	}},
	{Play.ClientBound, &p.Chat{}, mappings{
		since(v.Minecraft_1_8, 0x02), since(v.Minecraft_1_9, 0x0F), since(v.Minecraft_1_13, 0x0E),
		since(v.Minecraft_1_15, 0x0F),
	}},
	{Play.ClientBound, &plugin.Message{}, mappings{
		since(v.Minecraft_1_8, 0x3F), since(v.Minecraft_1_9, 0x18), since(v.Minecraft_1_13, 0x19),
		since(v.Minecraft_1_14, 0x18), since(v.Minecraft_1_15, 0x19),
	}},
}

func init() {
	// A play packet of another version would be decoded with wrong ids.
	Play.ServerBound.Fallback = false
	Play.ClientBound.Fallback = false
	for _, e := range packets {
		e.to.Register(e.packet, e.ids...)
	}
}
