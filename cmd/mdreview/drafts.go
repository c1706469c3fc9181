package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDraftsCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "drafts <file>",
		Short: "List threads with unpublished changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			drafts, err := app.Threads.Drafts(commandContext(cmd), doc)
			if err != nil {
				return err
			}

			rows := make([]threadRow, 0, len(drafts))
			for _, t := range drafts {
				rows = append(rows, toThreadRow(t, ""))
			}
			if format == formatTable && len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drafts")
				return nil
			}
			return outputThreads(cmd, format, rows)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}

func newPublishCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file>",
		Short: "Clear the draft flag on every thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			count, err := app.Threads.Publish(commandContext(cmd), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %d thread(s)\n", count)
			return nil
		},
	}
}
