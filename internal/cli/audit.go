package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events (logins, logouts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			events, err := st.ListAuditEvents(context.Background(), limit, 0)
			if err != nil {
				return err
			}
			for _, e := range events {
				fmt.Printf("%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Username, e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum number of events to show")
	return cmd
}
