package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/usecase"
)

func newCommentCmd(flags *globalFlags) *cobra.Command {
	var (
		section string
		line    int
		message string
		author  string
	)

	cmd := &cobra.Command{
		Use:   "comment <file>",
		Short: "Start a comment thread on a section",
		Long:  "Start a comment thread on the section named by --section, or on the section containing --line (0-based). The body comes from --message or stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasLine := cmd.Flags().Changed("line")
			if section == "" && !hasLine {
				return errors.New("one of --section or --line is required")
			}
			if section != "" && hasLine {
				return errors.New("--section and --line are mutually exclusive")
			}

			body, err := readBody(cmd, message)
			if err != nil {
				return err
			}

			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			input := usecase.CommentInput{
				Doc:     doc,
				Section: section,
				Author:  authorOr(author, app.Author),
				Body:    body,
			}
			if hasLine {
				l := line
				input.Line = &l
			}

			result, err := app.Review.Comment(commandContext(cmd), input)
			if errors.Is(err, usecase.ErrSectionNotFound) {
				if hasLine {
					return fmt.Errorf("line %d is not inside any section of %s", line, doc)
				}
				return fmt.Errorf("section '%s' not found in %s", section, doc)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Thread.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", "", "Slug of the section to comment on")
	cmd.Flags().IntVarP(&line, "line", "l", 0, "0-based line inside the section to comment on")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Comment body (read from stdin when omitted)")
	cmd.Flags().StringVar(&author, "author", "", "Comment author (defaults to config, then git user.name)")

	return cmd
}

func authorOr(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}
