package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriState(t *testing.T) {
	assert.True(t, True.Bool())
	assert.False(t, False.Bool())
	assert.False(t, Undefined.Bool())

	assert.Equal(t, "undefined", Undefined.String())
	assert.Equal(t, "false", False.String())
}

func TestFixed(t *testing.T) {
	assert.Equal(t, Undefined, DefaultFunc("velocity.command.server"))
	assert.Equal(t, True, Fixed(True)("anything"))
}
