package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/records"
)

func newCallsCommand(ctx *commandContext) *cobra.Command {
	callsCmd := &cobra.Command{
		Use:   "calls",
		Short: "Browse stored call records",
	}
	callsCmd.AddCommand(newCallsListCommand(ctx))
	callsCmd.AddCommand(newCallsShowCommand(ctx))
	callsCmd.AddCommand(newCallsImportCommand(ctx))
	return callsCmd
}

func newCallsListCommand(ctx *commandContext) *cobra.Command {
	var region, userID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List call records in the order they were stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				recs, err := store.List(cmd.Context(), records.Filter{
					Region: strings.TrimSpace(region),
					UserID: strings.TrimSpace(userID),
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, recs)
				}
				out := cmd.OutOrStdout()
				if len(recs) == 0 {
					fmt.Fprintln(out, "No calls recorded")
					return nil
				}
				fmt.Fprintln(out, renderCallTable(recs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Only calls from this region")
	cmd.Flags().StringVar(&userID, "user-id", "", "Only calls by this agent")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCallsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <call-id>",
		Short: "Show one call record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				rec, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				printRecord(out, rec, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCallsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <records.json>",
		Short: "Import call records from a JSON array, skipping known call IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer file.Close()

			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				n, err := store.Import(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d call records\n", n)
				return nil
			})
		},
	}
}
