package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newMemoryCommand(ctx *commandContext) *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Query the meeting memory index",
	}
	memoryCmd.AddCommand(newMemorySearchCommand(ctx))
	return memoryCmd
}

func newMemorySearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search past meeting summaries by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			return ctx.withClient(func(client *apiClient) error {
				resp, err := client.SearchMemory(query, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Matches) == 0 {
					fmt.Fprintf(out, "No matches for %q\n", query)
					return nil
				}
				rows := make([][]string, 0, len(resp.Matches))
				for _, match := range resp.Matches {
					rows = append(rows, []string{
						strconv.FormatInt(match.SessionID, 10),
						strconv.Itoa(match.ChunkIndex),
						truncate(match.Content, 80),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Session", "Chunk", "Content"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of matches")
	return cmd
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
