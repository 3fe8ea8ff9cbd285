package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"roomkeys/internal/domain"
	"roomkeys/internal/domain/types"
	"roomkeys/internal/store"
)

// receive-key: store an m.room_key content read from a JSON file.
func receiveKeyCmd() *cobra.Command {
	var senderKey, signingKey string
	cmd := &cobra.Command{
		Use:   "receive-key <content.json>",
		Short: "Store an m.room_key received from the session creator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := types.X25519PublicFromBase64(senderKey)
			if err != nil {
				return fmt.Errorf("--sender-key: %w", err)
			}
			ed, err := types.Ed25519PublicFromBase64(signingKey)
			if err != nil {
				return fmt.Errorf("--signing-key: %w", err)
			}
			var content domain.RoomKeyContent
			if err := readInput(args[0], &content); err != nil {
				return err
			}
			session, err := appCtx.RoomKeys.ReceiveRoomKey(cmd.Context(), curve, ed, content)
			if err != nil {
				return err
			}
			fmt.Printf("Session %s for %s (first known index %d)\n",
				session.SessionID(), session.RoomID(), session.FirstKnownIndex())
			return nil
		},
	}
	cmd.Flags().StringVar(&senderKey, "sender-key", "", "Curve25519 key of the sending device")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "Ed25519 key of the sending device")
	_ = cmd.MarkFlagRequired("sender-key")
	_ = cmd.MarkFlagRequired("signing-key")
	return cmd
}

// receive-forwarded: store a decrypted m.forwarded_room_key event.
func receiveForwardedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive-forwarded <event.json>",
		Short: "Store an m.forwarded_room_key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ev domain.ForwardedRoomKeyEvent
			if err := readInput(args[0], &ev); err != nil {
				return err
			}
			session, err := appCtx.RoomKeys.ReceiveForwardedRoomKey(cmd.Context(), ev.Content)
			if err != nil {
				return err
			}
			fmt.Printf("Session %s for %s from %s (first known index %d)\n",
				session.SessionID(), session.RoomID(), ev.Sender, session.FirstKnownIndex())
			return nil
		},
	}
}

func readInput(path string, out any) error {
	ok, err := store.ReadJSON(path, out)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("read %s: no such file", path)
	}
	return nil
}
