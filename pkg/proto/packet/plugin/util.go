package plugin

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/dualspiral/velocity/pkg/proto"
	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

// Channels with a meaning to the proxy, legacy (before 1.13) and namespaced.
const (
	BrandChannelLegacy      = "MC|Brand"
	BrandChannel            = "minecraft:brand"
	RegisterChannelLegacy   = "REGISTER"
	RegisterChannel         = "minecraft:register"
	UnregisterChannelLegacy = "UNREGISTER"
	UnregisterChannel       = "minecraft:unregister"
)

func on(p *Message, legacy, modern string) bool {
	return p != nil && (strings.EqualFold(p.Channel, legacy) || strings.EqualFold(p.Channel, modern))
}

// McBrand reports whether p carries the client or server brand.
func McBrand(p *Message) bool { return on(p, BrandChannelLegacy, BrandChannel) }

// IsRegister reports whether p announces channels its sender listens on.
func IsRegister(p *Message) bool { return on(p, RegisterChannelLegacy, RegisterChannel) }

// IsUnregister reports whether p withdraws channels.
func IsUnregister(p *Message) bool { return on(p, UnregisterChannelLegacy, UnregisterChannel) }

// Channels lists the channels of a register or unregister message.
// The wire format is channel names separated by NUL.
func Channels(p *Message) []string {
	if !IsRegister(p) && !IsUnregister(p) {
		return nil
	}
	var channels []string
	for _, c := range strings.Split(string(p.Data), "\x00") {
		if c != "" {
			channels = append(channels, c)
		}
	}
	return channels
}

// RegisterMessage announces channels to a peer speaking protocol.
func RegisterMessage(protocol proto.Protocol, channels []string) *Message {
	name := RegisterChannelLegacy
	if protocol.GreaterEqual(version.Minecraft_1_13) {
		name = RegisterChannel
	}
	return &Message{Channel: name, Data: []byte(strings.Join(channels, "\x00"))}
}

var invalidIdentifier = regexp.MustCompile(`[^a-z0-9\-_]*`)

// TransformLegacyToModernChannel maps a pre 1.13 channel name to the
// namespaced form 1.13 clients expect. Namespaced names are kept.
func TransformLegacyToModernChannel(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	switch name {
	case RegisterChannelLegacy:
		return RegisterChannel
	case UnregisterChannelLegacy:
		return UnregisterChannel
	case BrandChannelLegacy:
		return BrandChannel
	case "BungeeCord":
		return "bungeecord:main"
	}
	return "legacy:" + invalidIdentifier.ReplaceAllString(strings.ToLower(name), "")
}

// RewriteMinecraftBrand returns a brand message showing "<brand> (<proxyName>)".
// Any other message is returned unchanged.
func RewriteMinecraftBrand(message *Message, proxyName string) *Message {
	if !McBrand(message) {
		return message
	}
	brand, err := util.ReadString(bytes.NewReader(message.Data))
	if err != nil {
		// Some clients send the brand without a length prefix.
		brand = string(message.Data)
	}
	var data bytes.Buffer
	_ = util.WriteString(&data, brand+" ("+proxyName+")")
	return &Message{Channel: message.Channel, Data: data.Bytes()}
}
