package velocity

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dualspiral/velocity/pkg/config"
)

// defaultConfigFile is where "config --write" puts the defaults.
const defaultConfigFile = "config.yml"

func configCommand() *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "Print the default configuration",
		ArgsUsage: " ",
		Description: `Prints the default configuration as yaml.

	velocity config > config.yml
	velocity config -o proxy.yml
	velocity config --write    # same as -o config.yml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "output",
				Aliases:   []string{"o"},
				Usage:     "File to write the configuration to",
				TakesFile: true,
			},
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Write to " + defaultConfigFile,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing output file",
			},
		},
		Action: func(c *cli.Context) error {
			out := c.String("output")
			if out == "" && c.Bool("write") {
				out = defaultConfigFile
			}
			if out == "" {
				if err := writeDefaultConfig(c.App.Writer); err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			}
			if err := writeDefaultConfigFile(out, c.Bool("force")); err != nil {
				return cli.Exit(err, 1)
			}
			_, _ = fmt.Fprintf(c.App.Writer, "Wrote default configuration to %s\n", out)
			return nil
		},
	}
}

func writeDefaultConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config.DefaultConfig); err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	return enc.Close()
}

func writeDefaultConfigFile(name string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(name, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists, pass --force to overwrite it", name)
	}
	if err != nil {
		return err
	}
	if err = writeDefaultConfig(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
