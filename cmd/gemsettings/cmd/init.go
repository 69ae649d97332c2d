/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wntrblm/gemsettings/pkg/config"
	"github.com/wntrblm/gemsettings/pkg/nvm"
	"github.com/wntrblm/gemsettings/pkg/settings"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file and flash image",
	Long: `Create a configuration file with a generated API key and an erased flash
image next to it.

This command will:
- Write the configuration to --config
- Create the flash image filled with 0xFF
- Optionally write the default settings record into it

Examples:
  gemsettings init --data-dir=./data
  gemsettings init --config=./gemsettings.yaml --data-dir=./data --write-defaults`,
	Annotations: map[string]string{skipSession: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		writeDefaults, _ := cmd.Flags().GetBool("write-defaults")

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Already initialized. Use --force to reinitialize.\n")
			cmd.Printf("Configuration: %s\n", configPath)
			return nil
		}

		cfg, err := initialize(configPath, dataDir, writeDefaults)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration written to %s\n", configPath)
		fmt.Fprintf(out, "Flash image: %s (%d bytes)\n", cfg.NVM.ImagePath, cfg.NVM.Size)
		fmt.Fprintf(out, "Snapshots: %s\n", cfg.Snapshots.Dir)
		fmt.Fprintf(out, "API key: %s\n", cfg.Server.APIKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("data-dir", "./data", "Directory for the flash image and snapshots")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("write-defaults", false, "Write the default settings record into the new image")
}

// initialize writes the configuration and creates the flash image
func initialize(configPath, dataDir string, writeDefaults bool) (*config.Config, error) {
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("invalid data directory: %w", err)
	}

	cfg, err := config.BootstrapConfig(configPath, absDataDir)
	if err != nil {
		return nil, err
	}

	image, err := getContainer().OpenImage(nvm.FileStoreConfig{
		Path:          cfg.NVM.ImagePath,
		Size:          cfg.NVM.Size,
		FsyncInterval: cfg.NVM.FsyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create flash image: %w", err)
	}
	defer image.Close()

	if writeDefaults {
		manager := settings.NewManager(image, settings.ManagerConfig{
			BaseAddress: cfg.NVM.BaseAddress,
			Logger:      zerolog.Nop(),
		})
		if err := manager.Save(settings.Defaults()); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
