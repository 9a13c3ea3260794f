package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	var alertsJSON bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show calls waiting past the response threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SlaAlerts()
				if err != nil {
					return err
				}
				if alertsJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Alerts) == 0 {
					fmt.Fprintln(stdout, "No calls past the response threshold")
					return nil
				}
				rows := make([][]string, 0, len(resp.Alerts))
				for _, alert := range resp.Alerts {
					flag := ""
					if alert.MultiAgent {
						flag = "multi-agent: " + strings.Join(alert.Agents, ", ")
					}
					waiting := (time.Duration(alert.WaitingSeconds) * time.Second).Round(time.Minute)
					rows = append(rows, []string{
						strconv.FormatInt(alert.GroupID, 10),
						alert.CallerPhone,
						waiting.String(),
						flag,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{title: "ID", numeric: true},
						{title: "Caller"},
						{title: "Waiting", numeric: true},
						{title: "Notes"},
					},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&alertsJSON, "json", false, "Emit alerts as JSON")
	return cmd
}

func newAttentionCommand(ctx *commandContext) *cobra.Command {
	var attentionJSON bool
	cmd := &cobra.Command{
		Use:   "attention",
		Short: "Show completed calls still missing a follow-up note",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.NeedsAttention()
				if err != nil {
					return err
				}
				if attentionJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Calls) == 0 {
					fmt.Fprintln(stdout, "Nothing needs attention")
					return nil
				}
				rows := make([][]string, 0, len(resp.Calls))
				for _, call := range resp.Calls {
					rows = append(rows, []string{
						strconv.FormatInt(call.ID, 10),
						call.CallerPhone,
						call.ObservedAt,
						call.ClaimOwner,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{title: "ID", numeric: true},
						{title: "Caller"},
						{title: "Observed"},
						{title: "Handled by"},
					},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&attentionJSON, "json", false, "Emit calls as JSON")
	return cmd
}
