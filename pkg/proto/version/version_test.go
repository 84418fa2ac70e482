package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspiral/velocity/pkg/proto"
)

func TestSupported(t *testing.T) {
	assert.True(t, Protocol(47).Supported())
	assert.True(t, Protocol(578).Supported())
	assert.False(t, Protocol(735).Supported())
	assert.False(t, Protocol(-1).Supported())
	assert.False(t, Protocol(Legacy.Protocol).Supported())
}

func TestVersionsOrdered(t *testing.T) {
	var last proto.Protocol = -3
	for _, v := range SupportedVersions {
		require.Greater(t, v.Protocol, last)
		last = v.Protocol
	}
	assert.Equal(t, Minecraft_1_8, MinimumVersion)
	assert.Equal(t, Minecraft_1_15_2, MaximumVersion)
	assert.Equal(t, "1.8-1.15.2", SupportedVersionsString)
}

func TestProtocolString(t *testing.T) {
	assert.Equal(t, "1.12.2(340)", Protocol(340).String())
	assert.Equal(t, "12345", Protocol(12345).String())
}
