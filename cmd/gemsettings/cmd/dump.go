package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Hex dump the raw settings region",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}

		raw, err := s.manager.ReadRaw()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s @ 0x%08x\n", s.config.NVM.ImagePath, s.manager.BaseAddress())
		fmt.Fprint(out, hex.Dump(raw))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
