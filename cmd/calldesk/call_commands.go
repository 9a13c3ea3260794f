package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newCallsCommand(ctx *commandContext) *cobra.Command {
	callsCmd := &cobra.Command{
		Use:   "calls",
		Short: "Inspect missed and reserved calls",
	}

	var listStatuses []string
	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List primary calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CallList(listStatuses)
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Calls) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No calls found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Calls))
				for _, call := range resp.Calls {
					owner := call.ClaimOwner
					if owner == "" {
						owner = "-"
					}
					name := call.ClientName
					if name == "" {
						name = "-"
					}
					rows = append(rows, []string{
						strconv.FormatInt(call.ID, 10),
						call.CallerPhone,
						name,
						call.Status,
						call.ObservedAt,
						owner,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]tableColumn{
						{title: "ID", numeric: true},
						{title: "Caller"},
						{title: "Client"},
						{title: "Status"},
						{title: "Observed"},
						{title: "Owner"},
					},
					rows,
				))
				return nil
			})
		},
	}
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (missed, reserved, completed, merged)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit calls as JSON")
	callsCmd.AddCommand(listCmd)

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one call with everything merged into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CallGroup(id)
				if err != nil {
					return err
				}
				if showJSON {
					return writeJSON(cmd, resp)
				}
				renderGroup(cmd, &resp.Group)
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Emit the group as JSON")
	callsCmd.AddCommand(showCmd)

	return callsCmd
}

func renderGroup(cmd *cobra.Command, group *ipc.CallGroup) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	primary := group.Primary
	for _, line := range renderSectionHeader(fmt.Sprintf("Call %d", primary.ID), colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Caller", statusInfo, primary.CallerPhone, colorize))
	if primary.ClientName != "" {
		fmt.Fprintln(stdout, renderStatusLine("Client", statusInfo, primary.ClientName, colorize))
	}
	statusK := statusWarn
	statusMsg := primary.Status
	switch primary.Status {
	case "reserved":
		statusMsg = fmt.Sprintf("reserved by %s", primary.ClaimOwner)
	case "completed":
		statusK = statusOK
	}
	fmt.Fprintln(stdout, renderStatusLine("Status", statusK, statusMsg, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Observed", statusInfo, primary.ObservedAt, colorize))
	if len(group.Agents) > 0 {
		kind := statusInfo
		if group.MultiAgent {
			kind = statusWarn
		}
		fmt.Fprintln(stdout, renderStatusLine("Seen by", kind, strings.Join(group.Agents, ", "), colorize))
	}

	if len(group.Members) == 0 {
		return
	}
	fmt.Fprintln(stdout)
	rows := make([][]string, 0, len(group.Members))
	for _, member := range group.Members {
		rows = append(rows, []string{
			strconv.FormatInt(member.ID, 10),
			member.Kind,
			member.ObservedAt,
		})
	}
	fmt.Fprintln(stdout, renderTable(
		[]tableColumn{
			{title: "ID", numeric: true},
			{title: "Kind"},
			{title: "Observed"},
		},
		rows,
	))
}

func newClaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <group-id>",
		Short: "Reserve a call group for callback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			agent, err := ctx.agentID()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Claim(id, agent)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Claimed {
					fmt.Fprintf(stdout, "Call %d is already reserved by %s\n", id, resp.Owner)
					return nil
				}
				fmt.Fprintf(stdout, "Call %d reserved for %s\n", id, agent)
				return nil
			})
		},
	}
}

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <group-id>",
		Short: "Return a reserved call group to the missed pool",
		Long: "Return a reserved call group to the missed pool. Any agent may " +
			"release any reservation, including one held by a colleague whose " +
			"device is unavailable.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			agent, err := ctx.agentID()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Release(id, agent); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Call %d released\n", id)
				return nil
			})
		},
	}
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <group-id>",
		Short: "Mark a reserved call group as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			agent, err := ctx.agentID()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Complete(id, agent); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Call %d completed\n", id)
				return nil
			})
		},
	}
}

func newRecipientCommand(ctx *commandContext) *cobra.Command {
	recipientCmd := &cobra.Command{
		Use:   "recipient",
		Short: "Manage call recipients",
	}

	addCmd := &cobra.Command{
		Use:   "add <call-id>",
		Short: "Record that this agent also observed the call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			agent, err := ctx.agentID()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddRecipient(id, agent)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Recipient %s recorded for call %d\n", agent, id)
				if resp.MultiAgent {
					fmt.Fprintf(stdout, "Warning: call %d was observed by multiple agents: %s\n",
						id, strings.Join(resp.Group.Agents, ", "))
				}
				return nil
			})
		},
	}
	recipientCmd.AddCommand(addCmd)

	return recipientCmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
