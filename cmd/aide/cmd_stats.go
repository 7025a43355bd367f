package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize meeting and email counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}

			meetings := st.MeetingStats()
			emails := st.EmailStats()

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"meetings": meetings,
					"emails":   emails,
				})
			}

			fmt.Println("Meetings:")
			fmt.Printf("  total:    %d\n", meetings.Total)
			fmt.Printf("  pending:  %d\n", meetings.Pending)
			fmt.Printf("  approved: %d\n", meetings.Approved)
			fmt.Printf("  rejected: %d\n", meetings.Rejected)
			fmt.Println("Emails:")
			fmt.Printf("  total:    %d\n", emails.Total)
			fmt.Printf("  sent:     %d\n", emails.Sent)
			fmt.Printf("  rejected: %d\n", emails.Rejected)
			fmt.Printf("  failed:   %d\n", emails.Failed)
			return nil
		},
	}
}
