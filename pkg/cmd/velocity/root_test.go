package velocity

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/version"
)

func TestAppFlags(t *testing.T) {
	app := App()
	assert.Equal(t, version.String(), app.Version, "App version should match version package")

	flags := make(map[string]bool)
	for _, flag := range app.Flags {
		for _, name := range flag.Names() {
			if flags[name] {
				t.Errorf("Flag conflict detected: %s", name)
			}
			flags[name] = true
		}
	}
	for _, name := range []string{"config", "c", "debug", "d", "verbosity", "v", "version", "V"} {
		assert.True(t, flags[name], "flag %q should exist", name)
	}

	help, err := app.ToMarkdown()
	require.NoError(t, err)
	assert.Contains(t, help, "--version")
	assert.Contains(t, help, "-V")
}

func TestVersionFlag(t *testing.T) {
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	require.NoError(t, app.Run([]string{"velocity", "-V"}))
	assert.Contains(t, out.String(), version.String())
}

func TestConfigCommand(t *testing.T) {
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	require.NoError(t, app.Run([]string{"velocity", "config"}))

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, config.DefaultConfig, cfg)
}

func TestConfigCommandOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "proxy.yml")
	app := App()
	app.Writer = &bytes.Buffer{}
	require.NoError(t, app.Run([]string{"velocity", "config", "-o", file}))

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(b, &cfg))
	assert.Equal(t, config.DefaultConfig, cfg)

	// An existing file is kept unless forced.
	assert.Error(t, writeDefaultConfigFile(file, false))
	assert.NoError(t, writeDefaultConfigFile(file, true))
}

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
bind: 127.0.0.1:25599
onlineMode: false
forwarding:
  mode: legacy
servers:
  hub: localhost:25566
try:
  - hub
`), 0644))
	t.Setenv("VELOCITY_STATUS_SHOWMAXPLAYERS", "42")

	v := viper.New()
	v.SetConfigFile(file)
	cfg, err := LoadConfig(v, true)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:25599", cfg.Bind)
	assert.False(t, cfg.OnlineMode)
	assert.Equal(t, config.LegacyForwardingMode, cfg.Forwarding.Mode)
	assert.Equal(t, map[string]string{"hub": "localhost:25566"}, cfg.Servers)
	assert.Equal(t, []string{"hub"}, cfg.Try)
	assert.Equal(t, 42, cfg.Status.ShowMaxPlayers)
	// Not in the file, so defaulted.
	assert.Equal(t, config.DefaultConfig.ReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, config.DefaultConfig.Quota, cfg.Quota)
}

func TestLoadConfigMissingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")

	v := viper.New()
	v.SetConfigFile(file)
	cfg, err := LoadConfig(v, false)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig.Bind, cfg.Bind)

	v = viper.New()
	v.SetConfigFile(file)
	_, err = LoadConfig(v, true)
	assert.Error(t, err)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Bind = ""
	err := Run(context.Background(), RunOptions{Config: &cfg, Logger: logr.Discard()})
	assert.ErrorContains(t, err, "config validation error")
}

func TestRunUntilCanceled(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Bind = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var banner bytes.Buffer
	require.NoError(t, Run(ctx, RunOptions{Config: &cfg, Logger: logr.Discard(), Banner: &banner}))
	assert.Contains(t, banner.String(), version.Name)
}
