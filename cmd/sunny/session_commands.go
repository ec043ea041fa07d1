package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sunny/internal/api"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var recipient string
	var sendEmail bool

	cmd := &cobra.Command{
		Use:   "create <meeting-url>",
		Short: "Queue a meeting for recording and summarization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				session, err := client.CreateSession(api.CreateSessionRequest{
					MeetingURL:     strings.TrimSpace(args[0]),
					RecipientEmail: strings.TrimSpace(recipient),
					SendEmail:      sendEmail,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created session %d (%s)\n", session.ID, session.Platform)
				if session.SendEmail {
					fmt.Fprintf(out, "Report will be emailed to %s\n", session.RecipientEmail)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&recipient, "email", "e", "", "Recipient for the meeting report")
	cmd.Flags().BoolVar(&sendEmail, "send-email", false, "Email the report when the session completes")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meeting sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				listed, err := client.ListSessions(listStatuses)
				if err != nil {
					return err
				}
				if len(listed) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
					return nil
				}
				rows := make([][]string, 0, len(listed))
				for _, session := range listed {
					rows = append(rows, []string{
						strconv.FormatInt(session.ID, 10),
						session.Platform,
						session.Status,
						fmt.Sprintf("%.0f%%", session.Progress.Percent),
						yesNo(session.SendEmail),
						session.CreatedAt,
					})
				}
				tableText := renderTable(
					[]string{"ID", "Platform", "Status", "Progress", "Email", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tableText)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by session status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withSummary bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiClient) error {
				session, err := client.GetSession(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printSessionDetail(out, session)

				if withSummary {
					summary, err := client.GetSummary(id)
					if err != nil {
						return err
					}
					rendered, err := json.MarshalIndent(summary, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, string(rendered))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withSummary, "summary", false, "Include the generated summary payload")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Request cancellation of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSessionID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiClient) error {
				if err := client.CancelSession(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for session %d\n", id)
				return nil
			})
		},
	}
}
