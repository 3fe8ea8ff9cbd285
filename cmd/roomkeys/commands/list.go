package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := appCtx.RoomKeys.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROOM\tSESSION\tINDEX\tSOURCE\tBACKED UP")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\n",
					s.RoomID(), s.SessionID(), s.FirstKnownIndex(), s.KeySource(), s.BackedUp())
			}
			return w.Flush()
		},
	}
}
