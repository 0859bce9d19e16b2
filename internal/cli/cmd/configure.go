package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filipexyz/keygate/internal/cli/config"
	"github.com/filipexyz/keygate/internal/domain"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save identity and server to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if identity != "" {
			if _, err := domain.ParseIdentity(identity); err != nil {
				return fmt.Errorf("identity must be 64 hex chars")
			}
			cfg.Identity = identity
		}
		if serverURL != "" {
			cfg.Server = serverURL
		}
		if err := config.Save(cfg, cfgFile); err != nil {
			return err
		}
		out.Success("Config saved to %s", configPath())
		return nil
	},
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
