package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/cuemix/internal/config"
)

var configOpts struct {
	yaml  bool
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Marshal(configOpts.yaml)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configOpts.force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd)

	configShowCmd.Flags().BoolVar(&configOpts.yaml, "yaml", false, "Print YAML instead of TOML")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false, "Overwrite an existing file")
}
