package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wntrblm/gemsettings/pkg/settings"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored settings",
	Long: `Load the settings record from the flash image and print it.

An erased or corrupt record is reported and the defaults are shown instead.

Examples:
  gemsettings show
  gemsettings show -o yaml > settings.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		rec, valid, err := s.manager.Load()
		if err != nil {
			return err
		}
		if !valid {
			fmt.Fprintln(cmd.ErrOrStderr(), "stored settings are invalid, showing defaults")
		}
		return writeRecord(cmd.OutOrStdout(), output, rec, valid)
	},
}

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <field>",
	Short: "Print one settings field",
	Long: `Print one field of the loaded settings record.

Example:
  gemsettings get led_brightness`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: settings.FieldKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		rec, _, err := s.manager.Load()
		if err != nil {
			return err
		}
		value, err := rec.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(getCmd)

	showCmd.Flags().StringP("output", "o", "text", "Output format: text, json or yaml")
}

func writeRecord(w io.Writer, output string, rec settings.Record, valid bool) error {
	switch output {
	case "text", "":
		for line := range settings.Format(rec) {
			fmt.Fprintln(w, line)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Valid  bool            `json:"valid"`
			Record settings.Record `json:"record"`
		}{valid, rec})
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (must be text, json or yaml)", output)
	}
}
