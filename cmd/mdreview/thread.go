package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/services"
	"github.com/choplin/mdreview/internal/sidecar"
)

func newReplyCmd(flags *globalFlags) *cobra.Command {
	var (
		message string
		author  string
	)

	cmd := &cobra.Command{
		Use:   "reply <file> <thread-id>",
		Short: "Reply to a comment thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			entry, err := app.Threads.Reply(commandContext(cmd), doc, args[1], sidecar.NewEntry{
				Author:  authorOr(author, app.Author),
				Body:    body,
				Created: time.Now().UTC(),
			})
			if err != nil {
				return describe(err, args[1], "")
			}

			fmt.Fprintln(cmd.OutOrStdout(), entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Reply body (read from stdin when omitted)")
	cmd.Flags().StringVar(&author, "author", "", "Reply author (defaults to config, then git user.name)")

	return cmd
}

func newEditCmd(flags *globalFlags) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "edit <file> <thread-id> <comment-id>",
		Short: "Replace the body of a comment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if _, err := app.Threads.Edit(commandContext(cmd), doc, args[1], args[2], body); err != nil {
				return describe(err, args[1], args[2])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Edited comment %s\n", args[2])
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "New body (read from stdin when omitted)")

	return cmd
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var (
		index     int
		commentID string
	)

	cmd := &cobra.Command{
		Use:   "delete <file> <thread-id>",
		Short: "Delete a thread, or one comment with --index or --comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasIndex := cmd.Flags().Changed("index")
			if hasIndex && commentID != "" {
				return errors.New("--index and --comment are mutually exclusive")
			}

			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			ctx := commandContext(cmd)
			threadID := args[1]

			switch {
			case hasIndex:
				if err := app.Threads.DeleteComment(ctx, doc, threadID, index); err != nil {
					return describe(err, threadID, fmt.Sprintf("#%d", index))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment #%d of thread %s\n", index, threadID)
			case commentID != "":
				if err := app.Threads.DeleteCommentByID(ctx, doc, threadID, commentID); err != nil {
					return describe(err, threadID, commentID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %s\n", commentID)
			default:
				if err := app.Threads.DeleteThread(ctx, doc, threadID); err != nil {
					return describe(err, threadID, "")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread %s\n", threadID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&index, "index", 0, "0-based position of the comment to delete")
	cmd.Flags().StringVar(&commentID, "comment", "", "Id of the comment to delete")

	return cmd
}

// newStatusCmd builds the resolve and reopen commands.
func newStatusCmd(flags *globalFlags, name string) *cobra.Command {
	status, short, verb := sidecar.StatusResolved, "Resolve a comment thread", "Resolved"
	if name == "reopen" {
		status, short, verb = sidecar.StatusOpen, "Reopen a resolved comment thread", "Reopened"
	}

	return &cobra.Command{
		Use:   name + " <file> <thread-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			if err := app.Threads.SetStatus(commandContext(cmd), doc, args[1], status); err != nil {
				return describe(err, args[1], "")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s\n", verb, args[1])
			return nil
		},
	}
}

func newReactCmd(flags *globalFlags) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "react <file> <thread-id> <comment-id>",
		Short: "Toggle your reaction on a comment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := flags.openApp(cmd, args[0])
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			who := authorOr(author, app.Author)
			added, err := app.Threads.ToggleReaction(commandContext(cmd), doc, args[1], args[2], who)
			if err != nil {
				return describe(err, args[1], args[2])
			}
			if added {
				fmt.Fprintf(cmd.OutOrStdout(), "Added reaction from %s\n", who)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed reaction from %s\n", who)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "Reacting user (defaults to config, then git user.name)")

	return cmd
}

// describe turns service sentinels into messages naming the missing id.
func describe(err error, threadID, comment string) error {
	switch {
	case errors.Is(err, services.ErrThreadNotFound):
		return fmt.Errorf("thread '%s' not found", threadID)
	case errors.Is(err, services.ErrCommentNotFound):
		return fmt.Errorf("comment '%s' not found in thread '%s'", comment, threadID)
	default:
		return err
	}
}
