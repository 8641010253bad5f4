package internal

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goplus/xarch/internal/config"
	"github.com/goplus/xarch/internal/env"
)

var configInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	Long: `Config prints the effective configuration. With --init it writes it to the
config file, which must not exist yet.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the effective configuration to the config file")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !configInit {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	path := configPath
	if path == "" {
		if path, err = env.ConfigFile(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	if _, err := env.FormulaDir(); err != nil {
		return fmt.Errorf("creating formula dir: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
