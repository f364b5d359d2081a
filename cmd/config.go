package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/lurchfeed/internal/config"
	"github.com/zjrosen/lurchfeed/internal/flags"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the lurchfeed config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default config file",
	Long: `Write the commented default configuration.

Without a path the file goes to ~/.config/lurchfeed/config.yaml. An existing
file is left alone unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return errors.New("no home directory found; pass a path")
		}
		if err := initConfigFile(path, configForce); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return err
	},
}

var configFlagCmd = &cobra.Command{
	Use:   "flag <name> <on|off>",
	Short: "Turn a feature flag on or off",
	Long: `Set flags.<name> in the active config file, keeping its comments.

Known flags:
  history-persistence  store run history in SQLite
  strip-title-ansi     remove escape sequences from stream titles`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseSwitch(args[1])
		if err != nil {
			return err
		}
		path := configFilePath()
		if path == "" {
			return errors.New("no config file; run 'lurchfeed config init' first")
		}
		if err := config.SaveFlag(path, args[0], value); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %t in %s\n", args[0], value, path)
		return err
	},
}

var configFlagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List enabled feature flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range flags.New(cfg.Flags).Names() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configFlagCmd, configFlagsCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfigFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w (use --force to replace it)", path, fs.ErrExist)
		}
	}
	return config.WriteDefaultConfig(path)
}

// configFilePath is the file viper loaded, falling back to the user config.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return config.DefaultConfigPath()
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("want on or off, got %q", s)
	}
	return v, nil
}
