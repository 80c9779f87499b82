package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/agentpulse/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	flags  *globalFlags
	format string
	force  bool
	output string
}

func newConfigCommand(flags *globalFlags) *cobra.Command {
	c := &configCommand{flags: flags}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runShow(cmd.OutOrStdout())
		},
	}
	show.Flags().StringVar(&c.format, "format", "yaml", "output format (yaml, json)")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runPath(cmd.OutOrStdout())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runInit(cmd.OutOrStdout())
		},
	}
	initCmd.Flags().BoolVar(&c.force, "force", false, "overwrite an existing file")
	initCmd.Flags().StringVarP(&c.output, "output", "o", "", "output path (default: ~/.config/agentpulse/config.yaml)")

	cmd.AddCommand(show, path, initCmd)
	return cmd
}

// runShow displays the current configuration.
func (c *configCommand) runShow(w io.Writer) error {
	cfg, err := c.flags.loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	switch c.format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintf(w, "# Source: %s\n%s", c.source(), data)
		return err
	default:
		return fmt.Errorf("unknown config format %q", c.format)
	}
}

// runPath shows the configuration file path.
func (c *configCommand) runPath(w io.Writer) error {
	_, err := fmt.Fprintln(w, c.source())
	return err
}

// runInit writes the defaults, refusing to overwrite without --force.
func (c *configCommand) runInit(w io.Writer) error {
	path := c.output
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if !c.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", path, err)
		}
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Configuration written to %s\n", path)
	return err
}

func (c *configCommand) source() string {
	if p := config.NewLoader(c.flags.configPath).Path(); p != "" {
		return p
	}
	return "defaults"
}
