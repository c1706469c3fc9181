package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/usecase"
)

func newReconcileCmd(flags *globalFlags) *cobra.Command {
	var (
		dryRun bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "reconcile <file>",
		Short: "Mark threads stale or open again after the document changed",
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

			result, err := app.Review.Reconcile(commandContext(cmd), doc, dryRun)
			if err != nil {
				return err
			}

			if format == formatJSON {
				return outputJSON(cmd, result)
			}
			if len(result.Updates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All threads up to date")
				return nil
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Thread", "From", "To"})
			for _, u := range result.Updates {
				t.AppendRow(table.Row{u.ThreadID, u.OldStatus, u.NewStatus})
			}
			t.Render()

			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d update(s) not saved (dry run)\n", len(result.Updates))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d thread(s)\n", result.Applied)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report updates without saving them")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}

type orphanRow struct {
	ThreadID  string `json:"threadId"`
	Section   string `json:"section"`
	LineHint  int    `json:"lineHint"`
	Candidate string `json:"candidate,omitempty"`
}

func newOrphansCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "orphans <file>",
		Short: "List threads whose section no longer exists",
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

			orphans, err := app.Review.Orphans(commandContext(cmd), doc)
			if err != nil {
				return err
			}

			rows := make([]orphanRow, 0, len(orphans))
			for _, o := range orphans {
				row := orphanRow{
					ThreadID: o.Thread.ID,
					Section:  o.Thread.Anchor.SectionSlug,
					LineHint: o.Thread.Anchor.LineHint,
				}
				if o.HasCandidate {
					row.Candidate = o.Candidate.Slug
				}
				rows = append(rows, row)
			}

			if format == formatJSON {
				return outputJSON(cmd, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orphaned threads")
				return nil
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Thread", "Was", "Line", "Suggested"})
			for _, r := range rows {
				suggested := r.Candidate
				if suggested == "" {
					suggested = "-"
				}
				t.AppendRow(table.Row{r.ThreadID, r.Section, r.LineHint, suggested})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}

func newReparentCmd(flags *globalFlags) *cobra.Command {
	var section string

	cmd := &cobra.Command{
		Use:   "reparent <file> <thread-id>",
		Short: "Move a thread onto a current section",
		Long:  "Move a thread onto the section given by --section, or onto the suggested section (same start line first, then same content).",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			target, err := app.Review.Reparent(commandContext(cmd), usecase.ReparentInput{
				Doc:      doc,
				ThreadID: args[1],
				Section:  section,
			})
			switch {
			case errors.Is(err, usecase.ErrNoCandidate):
				return fmt.Errorf("no suggested section for thread '%s'; choose one with --section", args[1])
			case errors.Is(err, usecase.ErrNotOrphaned):
				return fmt.Errorf("thread '%s' still resolves to its section; pass --section to move it anyway", args[1])
			case errors.Is(err, usecase.ErrSectionNotFound):
				return fmt.Errorf("section '%s' not found in %s", section, doc)
			case err != nil:
				return describe(err, args[1], "")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Moved thread %s to '%s'\n", args[1], target.Slug)
			return nil
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", "", "Target section slug (defaults to the suggested section)")

	return cmd
}
