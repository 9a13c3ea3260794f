package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"calldesk/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var healthJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show call-store and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				calls, err := client.CallHealth()
				if err != nil {
					return err
				}
				db, err := client.DatabaseHealth()
				if err != nil && db == nil {
					return err
				}
				if healthJSON {
					return writeJSON(cmd, map[string]any{
						"calls":    calls,
						"database": db,
					})
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Call Store", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", calls.Total), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Missed", statusInfo, fmt.Sprintf("%d", calls.Missed), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Reserved", statusInfo, fmt.Sprintf("%d", calls.Reserved), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Completed", statusInfo, fmt.Sprintf("%d", calls.Completed), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Merged", statusInfo, fmt.Sprintf("%d", calls.Merged), colorize))

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Database", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Path", statusInfo, db.DBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Readable", boolKind(db.DatabaseReadable), yesNo(db.DatabaseReadable), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Integrity", boolKind(db.IntegrityCheck), yesNo(db.IntegrityCheck), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Schema", statusInfo, db.SchemaVersion, colorize))
				if db.Error != "" {
					fmt.Fprintln(stdout, renderStatusLine("Error", statusError, db.Error, colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&healthJSON, "json", false, "Emit health as JSON")
	return cmd
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
