// Package velocity is the command line interface of the proxy.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/gookit/color"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dualspiral/velocity/internal/util/console"
	"github.com/dualspiral/velocity/pkg/config"
	"github.com/dualspiral/velocity/pkg/internal/reload"
	"github.com/dualspiral/velocity/pkg/proxy"
	"github.com/dualspiral/velocity/pkg/telemetry"
	"github.com/dualspiral/velocity/pkg/util/errs"
	"github.com/dualspiral/velocity/pkg/util/interrupt"
	"github.com/dualspiral/velocity/pkg/version"
)

// Main runs the command line app and exits non-zero on error.
func Main() {
	if err := App().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// App returns the command line app of the proxy.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "velocity"
	app.Usage = "Velocity is a Minecraft proxy connecting players to backend servers."
	app.Description = `A Minecraft Java edition proxy that authenticates players,
forwards their identity and moves them between backend servers.

Visit the config command to get started:

	velocity config > config.yml
	velocity -c config.yml`
	app.Version = version.String()
	// The version flag is ours so -v stays free for verbosity.
	app.HideVersion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage: `config file (default: ./config.yml)
Supports: yaml/yml, json, toml, hcl, ini, prop/properties/props, env/dotenv`,
			EnvVars: []string{"VELOCITY_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug mode and highest log verbosity",
			EnvVars: []string{"VELOCITY_DEBUG"},
		},
		&cli.IntFlag{
			Name:    "verbosity",
			Aliases: []string{"v"},
			Usage:   "The higher the verbosity the more logs are shown",
			EnvVars: []string{"VELOCITY_VERBOSITY"},
		},
		&cli.BoolFlag{
			Name:    "version",
			Aliases: []string{"V"},
			Usage:   "Print the version and exit",
		},
	}
	app.Commands = []*cli.Command{configCommand()}
	app.Action = func(c *cli.Context) error {
		if c.Bool("version") {
			cli.ShowVersion(c)
			return nil
		}

		v := viper.New()
		if file := c.String("config"); file != "" {
			v.SetConfigFile(file)
		} else {
			v.SetConfigFile("config.yml")
		}
		cfg, err := LoadConfig(v, c.IsSet("config"))
		if err != nil {
			return cli.Exit(err, 1)
		}
		debug := c.Bool("debug") || cfg.Debug

		log, err := newLogger(debug, c.Int("verbosity"))
		if err != nil {
			return cli.Exit(fmt.Errorf("error creating zap logger: %w", err), 1)
		}
		configFile := v.ConfigFileUsed()
		if _, statErr := os.Stat(configFile); statErr != nil {
			configFile = "" // running on defaults
		}
		err = Run(c.Context, RunOptions{
			Config:     cfg,
			ConfigFile: configFile,
			Logger:     log,
			Banner:     c.App.Writer,
		})
		if err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	}
	return app
}

// LoadConfig reads the config file and the VELOCITY_ prefixed environment
// variables into a config with defaults applied. A missing config file is
// only an error if required is true.
func LoadConfig(v *viper.Viper, required bool) (*config.Config, error) {
	v.SetEnvPrefix("VELOCITY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if required || (!errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("error reading config file %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	// Viper merges map defaults into configured maps,
	// configured servers replace the default ones.
	if v.InConfig("servers") {
		cfg.Servers = v.GetStringMapString("servers")
	}
	return &cfg, nil
}

// RunOptions are the options for Run.
type RunOptions struct {
	Config *config.Config
	// ConfigFile is watched for server changes if Config.AutoReload is set.
	ConfigFile string
	Logger     logr.Logger
	// Banner receives the startup banner, if set.
	Banner io.Writer
}

// Run validates the config and runs the proxy until ctx is canceled
// or a termination signal is received.
func Run(ctx context.Context, o RunOptions) error {
	cfg, log := o.Config, o.Logger
	if cfg == nil {
		return errs.ErrMissingConfig
	}
	if err := validate(cfg, log); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if s, ok := <-interrupt.Notify(ctx); ok {
			log.Info("received signal, shutting down", "signal", s.String())
			cancel()
		}
	}()

	cleanup, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return err
	}
	defer cleanup()

	if o.Banner != nil {
		_, _ = fmt.Fprintf(o.Banner, "%s %s\n%s\n",
			color.Bold.Sprint(version.Name), color.Gray.Sprint(version.String()),
			console.AnsiFromLegacy(cfg.Status.Motd))
	}

	p, err := proxy.New(proxy.Options{
		Config: cfg,
		Logger: log.WithName("proxy"),
	})
	if err != nil {
		return fmt.Errorf("error creating proxy: %w", err)
	}

	if cfg.AutoReload && o.ConfigFile != "" {
		current := cfg
		watchCtx := logr.NewContext(ctx, log.WithName("reload"))
		err = reload.Watch(watchCtx, o.ConfigFile, func() error {
			v := viper.New()
			v.SetConfigFile(o.ConfigFile)
			newCfg, err := LoadConfig(v, true)
			if err != nil {
				return err
			}
			if err = validate(newCfg, log); err != nil {
				return err
			}
			reload.Publish(p.Event(), current, newCfg)
			current = newCfg
			return nil
		})
		if err != nil {
			return fmt.Errorf("error watching config file: %w", err)
		}
	}

	return p.Start(ctx)
}

func validate(cfg *config.Config, log logr.Logger) error {
	warns, errs := cfg.Validate()
	for _, w := range warns {
		log.Info("config validation warning", "warn", w.Error())
	}
	if len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		log.Info("config validation error", "error", e.Error())
	}
	return fmt.Errorf("config validation error: %d errors found", len(errs))
}

func newLogger(debug bool, verbosity int) (logr.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		if verbosity < 1 {
			verbosity = 1
		}
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// logr V(n) maps to zap level -n
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	cfg.DisableStacktrace = !debug

	l, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(l), nil
}
