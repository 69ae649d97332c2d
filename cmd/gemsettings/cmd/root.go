/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wntrblm/gemsettings/pkg/config"
	"github.com/wntrblm/gemsettings/pkg/di"
	"github.com/wntrblm/gemsettings/pkg/logging"
	"github.com/wntrblm/gemsettings/pkg/nvm"
	"github.com/wntrblm/gemsettings/pkg/settings"
)

// skipSession marks commands that run without an opened NVM image
const skipSession = "gemsettings/skip-session"

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

func getContainer() *di.Container {
	if container == nil {
		container = di.NewContainer()
	}
	return container
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gemsettings",
	Short: "Inspect and edit Gemini settings records",
	Long: `gemsettings reads, validates and writes the Gemini calibration and UI
settings record stored in a flash image, keeps backups of it and converts it
to and from the SysEx messages used by the factory tooling.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipSession] == "true" {
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		s, err := openSession(cfg, cmd)
		if err != nil {
			return err
		}

		// Store in command context
		cmd.SetContext(context.WithValue(cmd.Context(), sessionKey{}, s))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnFinalize(closeSession)

	rootCmd.PersistentFlags().StringP("config", "c", config.GetDefaultConfigPath(), "Path to the configuration file")
	rootCmd.PersistentFlags().StringP("image", "i", "", "Flash image holding the settings (overrides nvm.image_path)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info or debug (overrides logging.level)")
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist, and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.DefaultConfig()
	if path != "" && config.ConfigExists(path) {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if image, _ := cmd.Flags().GetString("image"); image != "" {
		cfg.NVM.ImagePath = image
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openSession(cfg *config.Config, cmd *cobra.Command) (*session, error) {
	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	image, err := getContainer().OpenImage(nvm.FileStoreConfig{
		Path:          cfg.NVM.ImagePath,
		Size:          cfg.NVM.Size,
		FsyncInterval: cfg.NVM.FsyncInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open flash image: %w", err)
	}

	manager := settings.NewManager(image, settings.ManagerConfig{
		BaseAddress: cfg.NVM.BaseAddress,
		Logger:      logging.Component(logger, "settings"),
	})

	s := &session{
		config:  cfg,
		logger:  logger,
		image:   image,
		manager: manager,
	}
	current = s
	return s, nil
}
