package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newClientsCommand(ctx *commandContext) *cobra.Command {
	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage the client registry",
	}

	var addAddress string
	var addNotes string
	addCmd := &cobra.Command{
		Use:   "add <phone> <name>",
		Short: "Register a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClientAdd(args[0], args[1], addAddress, addNotes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Client %d registered: %s (%s)\n",
					resp.Client.ID, resp.Client.Name, resp.Client.Phone)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&addAddress, "address", "", "Client street address")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-form notes")
	clientsCmd.AddCommand(addCmd)

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClientList()
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Clients) == 0 {
					fmt.Fprintln(stdout, "No clients registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Clients))
				for _, entry := range resp.Clients {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						entry.Phone,
						entry.Name,
						entry.Address,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{title: "ID", numeric: true},
						{title: "Phone"},
						{title: "Name"},
						{title: "Address"},
					},
					rows,
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit clients as JSON")
	clientsCmd.AddCommand(listCmd)

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a client from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClientRemove(id)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Removed {
					fmt.Fprintf(stdout, "Client %d removed\n", id)
				} else {
					fmt.Fprintf(stdout, "Client %d not found\n", id)
				}
				return nil
			})
		},
	}
	clientsCmd.AddCommand(removeCmd)

	return clientsCmd
}
