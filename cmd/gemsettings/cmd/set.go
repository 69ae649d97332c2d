package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wntrblm/gemsettings/pkg/settings"
)

// setCmd represents the set command
var setCmd = &cobra.Command{
	Use:   "set <field>=<value>...",
	Short: "Change settings fields",
	Long: `Change one or more fields of the loaded settings record and save it.

The record is validated before it is written. Fixed point fields take
decimal values.

Examples:
  gemsettings set adc_gain_corr=2100 led_brightness=200
  gemsettings set chorus_frequency=0.35`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		rec, _, err := s.manager.Load()
		if err != nil {
			return err
		}

		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected <field>=<value>, got %q", arg)
			}
			if err := rec.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return err
			}
		}

		if err := saveRecord(s, rec); err != nil {
			return err
		}
		return writeRecord(cmd.OutOrStdout(), "text", rec, true)
	},
}

// applyCmd represents the apply command
var applyCmd = &cobra.Command{
	Use:   "apply -f <file>",
	Short: "Write a settings record from a YAML file",
	Long: `Read a settings record from a YAML file and save it.

Fields missing from the file are taken from the defaults, or from the stored
record with --merge. Unknown fields are rejected.

Examples:
  gemsettings show -o yaml > settings.yaml
  gemsettings apply -f settings.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		file, _ := cmd.Flags().GetString("file")
		merge, _ := cmd.Flags().GetBool("merge")

		rec := settings.Defaults()
		if merge {
			if rec, _, err = s.manager.Load(); err != nil {
				return err
			}
		}

		if err := readRecordFile(file, &rec); err != nil {
			return err
		}
		if err := saveRecord(s, rec); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Applied settings from %s\n", file)
		return nil
	},
}

// eraseCmd represents the erase command
var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Invalidate the stored settings",
	Long: `Overwrite the marker byte of the stored record with 0xFF. The next load
falls back to the defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		if err := s.manager.Erase(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings erased")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(eraseCmd)

	applyCmd.Flags().StringP("file", "f", "", "YAML file holding the settings record (required)")
	applyCmd.Flags().Bool("merge", false, "Start from the stored record instead of the defaults")
	if err := applyCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func readRecordFile(path string, rec *settings.Record) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(rec); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}
	return nil
}

// saveRecord validates rec before writing it
func saveRecord(s *session, rec settings.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.manager.Save(rec); err != nil {
		return err
	}
	s.logger.Info().Msg("settings saved")
	return nil
}
