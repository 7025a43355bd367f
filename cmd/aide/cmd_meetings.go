package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidekit/aide/internal/models"
	"github.com/aidekit/aide/internal/store"
)

func newMeetingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Inspect and manage tracked meetings",
	}
	cmd.AddCommand(
		newMeetingsListCmd(),
		newMeetingsAddCmd(),
		newMeetingsSetStatusCmd("approve", models.MeetingApproved),
		newMeetingsSetStatusCmd("reject", models.MeetingRejected),
		newMeetingsDeleteCmd(),
	)
	return cmd
}

func newMeetingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			statusFilter, _ := cmd.Flags().GetString("status")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}

			meetings := st.Meetings()
			if statusFilter != "" {
				filtered := meetings[:0:0]
				for _, m := range meetings {
					if strings.EqualFold(string(m.Status), statusFilter) {
						filtered = append(filtered, m)
					}
				}
				meetings = filtered
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(meetings)
			}
			if len(meetings) == 0 {
				fmt.Println("No meetings tracked.")
				return nil
			}
			for _, m := range meetings {
				fmt.Printf("%.8s  %-10s %s-%s  %-9s %s\n",
					m.ID, m.Date, m.StartTime, m.EndTime, m.Status, m.Title)
				if len(m.Attendees) > 0 {
					fmt.Printf("          attendees: %s\n", strings.Join(m.Attendees, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "Filter by status (Pending, Approved, Rejected)")
	return cmd
}

func newMeetingsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a meeting manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			title, _ := cmd.Flags().GetString("title")
			date, _ := cmd.Flags().GetString("date")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			location, _ := cmd.Flags().GetString("location")
			attendees, _ := cmd.Flags().GetStringSlice("attendees")

			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}

			m := models.NewMeeting(title, date, start, end, location, attendees, models.SourceScheduler)
			if err := st.AppendMeeting(m); err != nil {
				return fmt.Errorf("failed to save meeting: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(m)
			}
			fmt.Printf("Meeting %.8s saved: %s on %s\n", m.ID, m.Title, m.Date)
			return nil
		},
	}
	cmd.Flags().String("title", "", "Meeting title (required)")
	cmd.Flags().String("date", "", "Meeting date, YYYY-MM-DD (required)")
	cmd.Flags().String("start", "09:00", "Start time, HH:MM")
	cmd.Flags().String("end", "10:00", "End time, HH:MM")
	cmd.Flags().String("location", "", "Location")
	cmd.Flags().StringSlice("attendees", nil, "Attendee email addresses")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("date")
	return cmd
}

func newMeetingsSetStatusCmd(use string, status models.MeetingStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: use + " a meeting by ID (prefix match allowed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}
			id, err := resolveMeetingID(st.Meetings(), args[0])
			if err != nil {
				return err
			}
			if _, err := st.SetMeetingStatus(id, status); err != nil {
				if errors.Is(err, store.ErrMeetingDecided) {
					return fmt.Errorf("meeting %.8s is already decided", id)
				}
				return err
			}
			fmt.Printf("Meeting %.8s -> %s\n", id, status)
			return nil
		},
	}
}

func newMeetingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meeting by ID (prefix match allowed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			st, err := openStore(root, quietLogger())
			if err != nil {
				return err
			}
			id, err := resolveMeetingID(st.Meetings(), args[0])
			if err != nil {
				return err
			}
			if _, err := st.DeleteMeeting(id); err != nil {
				return err
			}
			fmt.Printf("Meeting %.8s deleted\n", id)
			return nil
		},
	}
}

// resolveMeetingID matches a full ID or unique prefix against the
// tracked meetings.
func resolveMeetingID(meetings []models.Meeting, arg string) (string, error) {
	var matches []string
	for _, m := range meetings {
		if m.ID == arg {
			return m.ID, nil
		}
		if strings.HasPrefix(m.ID, arg) {
			matches = append(matches, m.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no meeting matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", arg, len(matches))
	}
}
