package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and workflow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "Daemon:   %s (pid %d)\n", runningLabel(status.Running), status.PID)
				fmt.Fprintf(out, "Database: %s\n", status.SessionDBPath)
				wf := status.Workflow
				fmt.Fprintf(out, "Workflow: %s, %d active, %d/%d meeting slots in use\n",
					runningLabel(wf.Running), wf.ActiveSessions, wf.SlotsInUse, wf.MeetingSlots)
				if wf.LastError != "" {
					fmt.Fprintf(out, "Last error: %s\n", wf.LastError)
				}

				if rows := sessionStatsRows(wf.SessionStats); len(rows) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}

				if len(wf.StageHealth) > 0 {
					rows := make([][]string, 0, len(wf.StageHealth))
					for _, health := range wf.StageHealth {
						state := "ready"
						if !health.Ready {
							state = "unavailable"
						}
						rows = append(rows, []string{health.Name, state, health.Detail})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Stage", "State", "Detail"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func sessionStatsRows(stats map[string]int) [][]string {
	statuses := make([]string, 0, len(stats))
	for status, count := range stats {
		if count > 0 {
			statuses = append(statuses, status)
		}
	}
	sort.Strings(statuses)
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[status])})
	}
	return rows
}
