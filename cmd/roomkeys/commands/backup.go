package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkeys/internal/backups"
	"roomkeys/internal/store"
)

func backupCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "backup <file>",
		Short: "Encrypt sessions that are not yet backed up into a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if version == "" {
				version = appCtx.Config.BackupVersion
			}
			if version != "" {
				if err := appCtx.BackupKeys.SetVersion(ctx, version); err != nil {
					return err
				}
			}
			key, err := appCtx.BackupKeys.LoadBackupKey(ctx)
			if err != nil {
				return err
			}
			if _, ok := key.BackupVersion(); !ok {
				return fmt.Errorf("%w: pass --version", backups.ErrNoVersion)
			}

			backup, err := appCtx.RoomKeys.BackUp(ctx, key)
			if err != nil {
				return err
			}
			if err := store.WriteJSON(args[0], backup, 0o600); err != nil {
				return err
			}
			fmt.Printf("Backed up %d sessions to %s.\n", backup.Count(), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "backup version to upload to")
	return cmd
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore sessions from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var backup backups.KeysBackup
			if err := readInput(args[0], &backup); err != nil {
				return err
			}
			dk, _, err := appCtx.BackupKeys.LoadDecryptionKey(ctx)
			if err != nil {
				return err
			}
			defer dk.Clear()

			restored, total, err := appCtx.RoomKeys.Restore(ctx, dk, &backup)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d of %d sessions.\n", restored, total)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check the backup MAC of every session in a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var backup backups.KeysBackup
			if err := readInput(args[0], &backup); err != nil {
				return err
			}
			report, err := appCtx.BackupKeys.Verify(cmd.Context(), &backup)
			if err != nil {
				return err
			}
			fmt.Printf("Verified: %d\nUnsigned: %d\nInvalid:  %d\n",
				report.Verified, report.Unsigned, report.Invalid)
			if report.Invalid > 0 {
				return fmt.Errorf("%d sessions failed verification", report.Invalid)
			}
			return nil
		},
	}
}
