package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start background processing on the calldesk daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Started {
					fmt.Fprintln(stdout, "Daemon started")
				} else {
					fmt.Fprintln(stdout, resp.Message)
				}
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop background processing on the calldesk daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and call status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if statusJSON {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	runningKind := statusError
	runningMsg := "stopped"
	if status.Running {
		runningKind = statusOK
		runningMsg = fmt.Sprintf("running (pid %d)", status.PID)
	}
	fmt.Fprintln(stdout, renderStatusLine("State", runningKind, runningMsg, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Agent", statusInfo, status.AgentID, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DBPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Feed clients", statusInfo, fmt.Sprintf("%d", status.FeedClients), colorize))

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Ingestion", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status.Ingest.Suspended {
		fmt.Fprintln(stdout, renderStatusLine("State", statusWarn, "suspended until a business line is chosen", colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("State", statusOK, "active", colorize))
	}
	line := status.Ingest.BusinessLine
	if line == "" {
		line = "not set"
	}
	fmt.Fprintln(stdout, renderStatusLine("Business line", statusInfo, line, colorize))
	if len(status.Ingest.DetectedLines) > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Detected lines", statusInfo, strings.Join(status.Ingest.DetectedLines, ", "), colorize))
	}
	if status.Ingest.PendingRetries > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Pending retries", statusWarn, fmt.Sprintf("%d", status.Ingest.PendingRetries), colorize))
	}

	fmt.Fprintln(stdout)
	for _, header := range renderSectionHeader("Calls", colorize) {
		fmt.Fprintln(stdout, header)
	}
	rows := buildCallStatsRows(status.CallStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No calls recorded")
		return
	}
	fmt.Fprintln(stdout, renderTable([]tableColumn{{title: "Status"}, {title: "Count", numeric: true}}, rows))
}

func buildCallStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	return rows
}
