package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initBackupCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "init-backup",
		Short: "Generate the backup key and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version == "" {
				version = appCtx.Config.BackupVersion
			}
			pub, fp, err := appCtx.BackupKeys.CreateBackupKey(cmd.Context(), version)
			if err != nil {
				return err
			}
			fmt.Printf("Backup key created.\nAlgorithm:   %s\nPublic key:  %s\nFingerprint: %s\n",
				pub.BackupAlgorithm(), pub.ToBase64(), fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "backup version the key is used with")
	return cmd
}
