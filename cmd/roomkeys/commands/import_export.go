package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkeys/internal/olm"
	"roomkeys/internal/store"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import sessions from a key export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var keys []olm.ExportedRoomKey
			if err := readInput(args[0], &keys); err != nil {
				return err
			}
			defer func() {
				for i := range keys {
					keys[i].Wipe()
				}
			}()
			imported, total, err := appCtx.RoomKeys.ImportRoomKeys(cmd.Context(), keys)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d of %d sessions.\n", imported, total)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every stored session to a key export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := appCtx.RoomKeys.Export(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				for i := range keys {
					keys[i].Wipe()
				}
			}()
			if err := store.WriteJSON(args[0], keys, 0o600); err != nil {
				return err
			}
			fmt.Printf("Exported %d sessions to %s.\n", len(keys), args[0])
			return nil
		},
	}
}
