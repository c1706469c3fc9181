package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/application"
	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List comment threads on a file, or every file with comments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if len(args) == 0 {
				return listDocs(cmd, flags, format)
			}

			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			result, err := app.Review.List(commandContext(cmd), doc)
			if err != nil {
				return err
			}

			if format == formatJSON {
				return outputJSON(cmd, struct {
					Doc     string      `json:"doc"`
					Threads []threadRow `json:"threads"`
					Summary any         `json:"summary"`
				}{doc, listRows(result), result.Summary})
			}

			if len(result.Threads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No comments")
				return nil
			}
			if err := outputThreads(cmd, format, listRows(result)); err != nil {
				return err
			}
			s := result.Summary
			fmt.Fprintf(cmd.OutOrStdout(), "%d fresh, %d stale, %d orphaned, %d resolved, %d draft\n",
				s.Fresh, s.Stale, s.Orphaned, s.Resolved, s.Drafts)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}

func listDocs(cmd *cobra.Command, flags *globalFlags, format string) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	root, err := docref.ResolveRoot(docref.Options{Root: flags.root})
	if err != nil {
		return err
	}

	app, err := application.Open(commandContext(cmd), cfg, root, logger.New(cfg.LogLevel, cmd.ErrOrStderr()), application.Options{})
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	docs, err := app.Threads.Docs(commandContext(cmd))
	if err != nil {
		return err
	}

	if format == formatJSON {
		return outputJSON(cmd, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No comments stored (%s backend)\n", cfg.Backend)
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintln(cmd.OutOrStdout(), doc)
	}
	return nil
}
