package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/application"
	"github.com/choplin/mdreview/internal/config"
	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
)

type globalFlags struct {
	root     string
	backend  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "mdreview",
		Short:         "mdreview - Review comments anchored to markdown sections",
		Long:          "mdreview keeps threaded review comments attached to markdown headings and re-anchors them as the document changes.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.root, "root", "", "Review root (defaults to the git worktree or current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "Storage backend: file, sqlite, or redis")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, or error")

	rootCmd.AddCommand(newSectionsCmd(flags))
	rootCmd.AddCommand(newListCmd(flags))
	rootCmd.AddCommand(newCommentCmd(flags))
	rootCmd.AddCommand(newReplyCmd(flags))
	rootCmd.AddCommand(newEditCmd(flags))
	rootCmd.AddCommand(newDeleteCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags, "resolve"))
	rootCmd.AddCommand(newStatusCmd(flags, "reopen"))
	rootCmd.AddCommand(newReactCmd(flags))
	rootCmd.AddCommand(newReconcileCmd(flags))
	rootCmd.AddCommand(newOrphansCmd(flags))
	rootCmd.AddCommand(newReparentCmd(flags))
	rootCmd.AddCommand(newDraftsCmd(flags))
	rootCmd.AddCommand(newPublishCmd(flags))
	rootCmd.AddCommand(newMCPCmd(flags))

	return rootCmd
}

// loadConfig reads the config and applies command-line overrides.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, cfg.Validate()
}

// openApp wires an App rooted at the document's review root and returns the
// document identity for file.
func (f *globalFlags) openApp(cmd *cobra.Command, file string) (*application.App, string, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, "", err
	}

	ref, err := docref.Resolve(file, docref.Options{Root: f.root})
	if err != nil {
		return nil, "", err
	}

	log := logger.New(cfg.LogLevel, cmd.ErrOrStderr())
	app, err := application.Open(commandContext(cmd), cfg, ref.Root, log, application.Options{})
	if err != nil {
		return nil, "", err
	}
	return app, ref.ID, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// readBody returns message, or reads the body from stdin when message is empty.
func readBody(cmd *cobra.Command, message string) (string, error) {
	if strings.TrimSpace(message) != "" {
		return message, nil
	}

	in := cmd.InOrStdin()
	if isTerminal(in) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Enter comment (Ctrl-D when done):")
	}

	bytes, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(string(bytes))
	if body == "" {
		return "", fmt.Errorf("comment body is empty")
	}
	return body, nil
}
