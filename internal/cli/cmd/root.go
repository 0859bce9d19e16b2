package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filipexyz/keygate/internal/cli/config"
	"github.com/filipexyz/keygate/internal/cli/output"
	"github.com/filipexyz/keygate/pkg/client"
)

var (
	cfgFile    string
	serverURL  string
	identity   string
	jsonOutput bool
	cfg        *config.Config
	out        *output.Output
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keygate",
	Short: "CLI for the keygate credential engine",
	Long:  `keygate is a command-line tool for managing projects, issuing API credentials, and verifying them against a keygate server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		out = output.New(jsonOutput)

		// Load config (ignore errors for commands that don't need it)
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			cfg = &config.Config{}
		}

		// Flag > config > default
		if serverURL == "" && cfg.Server != "" {
			serverURL = cfg.Server
		}
		if serverURL == "" {
			serverURL = client.DefaultServer
		}
		if identity == "" {
			identity = cfg.Identity
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.keygate/config.json)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL")
	rootCmd.PersistentFlags().StringVar(&identity, "identity", "", "caller identity (64 hex chars)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
}

// getClient creates a client with current config.
func getClient() *client.Client {
	return client.New(identity, client.WithServer(serverURL))
}
