package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkeys/internal/domain"
)

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <event.json>",
		Short: "Decrypt an m.room.encrypted event with a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ev domain.EncryptedEvent
			if err := readInput(args[0], &ev); err != nil {
				return err
			}
			plaintext, index, err := appCtx.RoomKeys.Decrypt(cmd.Context(), &ev)
			if err != nil {
				return err
			}
			fmt.Printf("[%s #%d] %s\n", ev.EventID, index, string(plaintext))
			return nil
		},
	}
}
