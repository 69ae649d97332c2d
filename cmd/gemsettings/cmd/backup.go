package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

// backupCmd represents the backup command
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Store a snapshot of the current settings",
	Long: `Serialize the loaded settings record and store it in the snapshot
database. An invalid stored record is backed up as the defaults.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		snaps, err := s.snapshots()
		if err != nil {
			return err
		}

		rec, valid, err := s.manager.Load()
		if err != nil {
			return err
		}
		if !valid {
			fmt.Fprintln(cmd.ErrOrStderr(), "stored settings are invalid, backing up defaults")
		}

		id, err := snaps.Create(s.manager.Codec().Encode(rec))
		if err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	},
}

// backupsCmd represents the backups command
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		snaps, err := s.snapshots()
		if err != nil {
			return err
		}

		list, err := snaps.List()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tVALID")
		for _, snap := range list {
			_, decodeErr := s.manager.Codec().Decode(snap.Data)
			fmt.Fprintf(tw, "%s\t%s\t%t\n", snap.ID, snap.CreatedAt.Local().Format(time.DateTime), decodeErr == nil)
		}
		return tw.Flush()
	},
}

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Write a snapshot back to the flash image",
	Long: `Decode a stored snapshot and save it as the current settings. Snapshots
that fail validation are refused.

Example:
  gemsettings restore 2bqQ1Fv6vBxkgbZ2rHd0SxmzpBE`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		snaps, err := s.snapshots()
		if err != nil {
			return err
		}

		id, err := ksuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid snapshot id %q: %w", args[0], err)
		}
		snap, err := snaps.Get(id)
		if err != nil {
			return err
		}

		rec, err := s.manager.Codec().Decode(snap.Data)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", id, err)
		}
		if err := s.manager.Save(rec); err != nil {
			return err
		}

		s.logger.Info().Stringer("snapshot", id).Msg("snapshot restored")
		fmt.Fprintf(cmd.OutOrStdout(), "Restored snapshot %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
}
