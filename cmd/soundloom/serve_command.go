package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"soundloom/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built dist directory over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if bind == "" {
				bind = cfg.Serve.Bind
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(bind, cfg.Paths.DistDir, logger)
			if err := srv.Start(runCtx); err != nil {
				return err
			}
			defer srv.Stop()

			<-runCtx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to the configured serve.bind)")
	return cmd
}
