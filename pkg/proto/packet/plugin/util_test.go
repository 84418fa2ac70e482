package plugin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspiral/velocity/pkg/proto/util"
	"github.com/dualspiral/velocity/pkg/proto/version"
)

func TestChannels(t *testing.T) {
	register := &Message{Channel: "minecraft:register", Data: []byte("foo:bar\x00\x00baz:qux")}
	assert.True(t, IsRegister(register))
	assert.False(t, IsUnregister(register))
	assert.Equal(t, []string{"foo:bar", "baz:qux"}, Channels(register))

	unregister := &Message{Channel: "UNREGISTER", Data: []byte("foo:bar")}
	assert.True(t, IsUnregister(unregister))
	assert.Equal(t, []string{"foo:bar"}, Channels(unregister))

	assert.Nil(t, Channels(&Message{Channel: "foo:bar", Data: []byte("a\x00b")}))
	assert.False(t, IsRegister(nil))
}

func TestRegisterMessage(t *testing.T) {
	legacy := RegisterMessage(version.Minecraft_1_12_2.Protocol, []string{"a:b", "c:d"})
	assert.Equal(t, RegisterChannelLegacy, legacy.Channel)
	assert.Equal(t, []byte("a:b\x00c:d"), legacy.Data)

	modern := RegisterMessage(version.Minecraft_1_13.Protocol, []string{"a:b"})
	assert.Equal(t, RegisterChannel, modern.Channel)
}

func TestTransformLegacyToModernChannel(t *testing.T) {
	for in, out := range map[string]string{
		"REGISTER":      RegisterChannel,
		"UNREGISTER":    UnregisterChannel,
		"MC|Brand":      BrandChannel,
		"BungeeCord":    "bungeecord:main",
		"WECUI":         "legacy:wecui",
		"My|Channel":    "legacy:mychannel",
		"already:there": "already:there",
	} {
		assert.Equal(t, out, TransformLegacyToModernChannel(in), in)
	}
}

func TestRewriteMinecraftBrand(t *testing.T) {
	var data bytes.Buffer
	require.NoError(t, util.WriteString(&data, "vanilla"))
	rewritten := RewriteMinecraftBrand(&Message{Channel: BrandChannel, Data: data.Bytes()}, "Velocity")
	brand, err := util.ReadString(bytes.NewReader(rewritten.Data))
	require.NoError(t, err)
	assert.Equal(t, "vanilla (Velocity)", brand)

	other := &Message{Channel: "foo:bar"}
	assert.Same(t, other, RewriteMinecraftBrand(other, "Velocity"))
}
