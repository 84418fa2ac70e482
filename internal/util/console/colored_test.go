package console

import (
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/assert"
	"go.minekube.com/common/minecraft/component"
)

func TestAnsiFromLegacyPlain(t *testing.T) {
	enabled := color.Enable
	color.Enable = false
	t.Cleanup(func() { color.Enable = enabled })

	assert.Equal(t, "Hello World!", AnsiFromLegacy("§aHello §lWorld§r!"))
	assert.Equal(t, "no codes", AnsiFromLegacy("no codes"))
	assert.Equal(t, "upper", AnsiFromLegacy("§Cupper"))
	assert.Equal(t, "", AnsiFromLegacy("§"))
	assert.Equal(t, "A Velocity Server", Ansi(&component.Text{Content: "A Velocity Server"}))
	assert.Empty(t, Ansi(nil))
}
