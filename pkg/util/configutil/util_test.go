package configutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithPrefix(t *testing.T) {
	got := map[string]any{}
	var sink SetDefault = SetDefaultFunc(func(key string, value any) { got[key] = value })

	WithPrefix("quota.logins", sink).SetDefault("burst", 3)
	assert.Equal(t, map[string]any{"quota.logins.burst": 3}, got)

	var nilFunc SetDefaultFunc
	assert.NotPanics(t, func() { nilFunc.SetDefault("k", 1) })
}
