package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidUsername(t *testing.T) {
	for name, valid := range map[string]bool{
		"Notch":              true,
		"jeb_":               true,
		"a1":                 true,
		"x":                  false,
		"":                   false,
		"with space":         false,
		"seventeen_chars_xx": false,
		"§cred":              false,
	} {
		assert.Equal(t, valid, ValidUsername(name), name)
	}
}

func TestValidServerName(t *testing.T) {
	assert.True(t, ValidServerName("lobby-1"))
	assert.False(t, ValidServerName("-lobby"))
	assert.False(t, ValidServerName(""))
}

func TestValidHostPort(t *testing.T) {
	assert.NoError(t, ValidHostPort("127.0.0.1:25565"))
	assert.Error(t, ValidHostPort("localhost"))
}
