package main

import (
	"github.com/spf13/cobra"

	"github.com/choplin/mdreview/internal/application"
	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/mcp"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server for mdreview on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			cfg.Origin = origin

			root, err := docref.ResolveRoot(docref.Options{Root: flags.root})
			if err != nil {
				return err
			}

			log := logger.New(cfg.LogLevel, cmd.ErrOrStderr())
			ctx := commandContext(cmd)
			app, err := application.Open(ctx, cfg, root, log, application.Options{})
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			log.Info("mcp server starting", "root", root, "backend", cfg.Backend)
			return mcp.NewServer(app, version).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "mdreview-mcp", "Origin tag recorded with every write")

	return cmd
}
