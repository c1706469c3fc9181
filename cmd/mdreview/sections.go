package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/anchor"
)

func newSectionsCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sections <file>",
		Short: "List the heading sections of a markdown file",
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

			sections, err := app.Review.Sections(commandContext(cmd), doc)
			if err != nil {
				return err
			}

			if format == formatTable {
				for _, slug := range anchor.DuplicateSlugs(sections) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: slug %q appears more than once; comments attach to the first\n", slug)
				}
			}
			return outputSections(cmd, format, sections)
		},
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}
