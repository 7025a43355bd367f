package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/config"
	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/recorder"
)

func newEmailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Inspect recorded emails",
	}
	cmd.AddCommand(
		newEmailsListCmd(),
		newEmailsSendCmd(),
		newEmailsDeleteCmd(),
	)
	return cmd
}

func newEmailsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			statusFilter, _ := cmd.Flags().GetString("status")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}

			emails := st.Emails()
			if statusFilter != "" {
				filtered := emails[:0:0]
				for _, e := range emails {
					if strings.EqualFold(string(e.Status), statusFilter) {
						filtered = append(filtered, e)
					}
				}
				emails = filtered
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(emails)
			}
			if len(emails) == 0 {
				fmt.Println("No emails recorded.")
				return nil
			}
			for _, e := range emails {
				fmt.Printf("%.8s  %-14s %-9s %-28s %s\n",
					e.ID, e.Status, e.Source, e.To, e.Subject)
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "Filter by delivery status (sent, rejected, failed, pending, no_credentials)")
	return cmd
}

func newEmailsSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an email through the configured provider and record it",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			to, _ := cmd.Flags().GetString("to")
			subject, _ := cmd.Flags().GetString("subject")
			body, _ := cmd.Flags().GetString("body")

			cfg := config.Load()
			logger := quietLogger()
			st, err := openStore(root, logger)
			if err != nil {
				return err
			}
			sender := buildSenderChain(cmd.Context(), cfg, logger)
			rec := recorder.New(st, sender, logger)

			res := rec.SendAndSave(cmd.Context(), recorder.Request{
				To:       to,
				Subject:  subject,
				Body:     body,
				Source:   models.SourceScheduler,
				Approval: recorder.ApprovalApproved,
				Mode:     recorder.DirectSend,
			})

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			if res.Err != "" {
				fmt.Printf("Not sent: %s\n", res.Err)
				return nil
			}
			fmt.Printf("Recorded %.8s with status %s\n", res.RecordID, res.Status)
			return nil
		},
	}
	cmd.Flags().String("to", "", "Recipient address (required)")
	cmd.Flags().String("subject", "", "Subject line")
	cmd.Flags().String("body", "", "Message body")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newEmailsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an email record by ID (prefix match allowed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}

			var matches []string
			for _, e := range st.Emails() {
				if e.ID == args[0] {
					matches = []string{e.ID}
					break
				}
				if strings.HasPrefix(e.ID, args[0]) {
					matches = append(matches, e.ID)
				}
			}
			switch len(matches) {
			case 0:
				return fmt.Errorf("no email matches %q", args[0])
			case 1:
			default:
				return fmt.Errorf("%q is ambiguous (%d matches)", args[0], len(matches))
			}

			if _, err := st.DeleteEmail(matches[0]); err != nil {
				return err
			}
			fmt.Printf("Email %.8s deleted\n", matches[0])
			return nil
		},
	}
}
