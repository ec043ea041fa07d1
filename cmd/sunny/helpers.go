package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"sunny/internal/api"
)

func parseSessionID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}
	return id, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func printSessionDetail(out io.Writer, session *api.Session) {
	fmt.Fprintf(out, "Session %d\n", session.ID)
	fmt.Fprintf(out, "  Platform:  %s\n", session.Platform)
	if session.MeetingURL != "" {
		fmt.Fprintf(out, "  URL:       %s\n", session.MeetingURL)
	}
	fmt.Fprintf(out, "  Status:    %s\n", session.Status)
	fmt.Fprintf(out, "  Progress:  %.0f%% (%s)\n", session.Progress.Percent, session.Progress.Stage)
	if session.RecipientEmail != "" {
		fmt.Fprintf(out, "  Recipient: %s (email %s)\n", session.RecipientEmail, yesNo(session.SendEmail))
	}
	if session.AudioFile != "" {
		fmt.Fprintf(out, "  Audio:     %s\n", session.AudioFile)
	}
	if session.ReportFile != "" {
		fmt.Fprintf(out, "  Report:    %s\n", session.ReportFile)
	}
	if session.CancelPending {
		fmt.Fprintln(out, "  Cancel:    pending")
	}
	if session.ErrorKind != "" {
		fmt.Fprintf(out, "  Error:     [%s/%s] %s\n", session.ErrorKind, session.ErrorStage, session.ErrorMessage)
	}
	if session.RetryCount > 0 {
		fmt.Fprintf(out, "  Retries:   %d\n", session.RetryCount)
	}
	fmt.Fprintf(out, "  Created:   %s\n", session.CreatedAt)
	fmt.Fprintf(out, "  Updated:   %s\n", session.UpdatedAt)

	if len(session.History) > 0 {
		fmt.Fprintln(out, "  History:")
		for _, transition := range session.History {
			fmt.Fprintf(out, "    %-14s %s\n", transition.Status, transition.At)
		}
	}
}
