/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wntrblm/gemsettings/pkg/api"
	"github.com/wntrblm/gemsettings/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Serve the settings record and its snapshots over HTTP.

Every route under /api/v1 requires the X-API-Key header. When the configured
key is empty or "auto" a key is generated for this run and printed.

Examples:
  gemsettings serve
  gemsettings serve --port=9300 --bind=0.0.0.0 --api-key=mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		serverConfig := api.ServerConfig{
			Port:   s.config.Server.Port,
			Bind:   s.config.Server.Bind,
			APIKey: s.config.Server.APIKey,
		}
		if cmd.Flags().Changed("port") {
			serverConfig.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			serverConfig.Bind, _ = cmd.Flags().GetString("bind")
		}
		if key, _ := cmd.Flags().GetString("api-key"); key != "" {
			serverConfig.APIKey = key
		}
		if serverConfig.APIKey == "" || serverConfig.APIKey == "auto" {
			key, err := config.GenerateSecureKey(32)
			if err != nil {
				return err
			}
			serverConfig.APIKey = key
			fmt.Fprintf(cmd.OutOrStdout(), "Generated API key: %s\n", key)
		}

		snaps, err := s.snapshots()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Metrics available at: http://%s:%d/metrics\n", serverConfig.Bind, serverConfig.Port)

		starter := getContainer().GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, s.manager, snaps, serverConfig, s.logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 9300, "Port to listen on (overrides server.port)")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind (overrides server.bind)")
	serveCmd.Flags().String("api-key", "", "API key for authentication (overrides server.api_key)")
}
