package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newLineCommand(ctx *commandContext) *cobra.Command {
	lineCmd := &cobra.Command{
		Use:   "line",
		Short: "Inspect and select the business telephony line",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show detected lines and the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				if len(status.Ingest.DetectedLines) == 0 {
					fmt.Fprintln(stdout, "No telephony lines detected")
				}
				for _, line := range status.Ingest.DetectedLines {
					if line == status.Ingest.BusinessLine {
						fmt.Fprintln(stdout, renderStatusLine(line, statusOK, "business line", colorize))
					} else {
						fmt.Fprintln(stdout, renderStatusLine(line, statusInfo, "", colorize))
					}
				}
				if status.Ingest.Suspended {
					fmt.Fprintln(stdout, renderStatusLine("Ingestion", statusWarn,
						"suspended; pick a line with `calldesk line set <id>`", colorize))
				}
				return nil
			})
		},
	}
	lineCmd.AddCommand(listCmd)

	setCmd := &cobra.Command{
		Use:   "set <line-id>",
		Short: "Select the business line and resume ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lineID := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetBusinessLine(lineID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Business line set to %s\n", resp.BusinessLine)
				return nil
			})
		},
	}
	lineCmd.AddCommand(setCmd)

	return lineCmd
}
