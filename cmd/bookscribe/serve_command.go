package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookscribe/internal/daemon"
	"bookscribe/internal/library"
	"bookscribe/internal/logging"
	"bookscribe/internal/speed"
	"bookscribe/internal/transcriber"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bookscribe server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			lib, err := library.New(cfg.Paths.LibraryDir)
			if err != nil {
				return err
			}
			store, err := speed.Open(cfg)
			if err != nil {
				return err
			}

			tr := transcriber.New(cfg, lib, store, logger)
			d, err := daemon.New(cfg, tr, store, logger)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bookscribe listening on %s\n", d.Addr())

			<-signalCtx.Done()
			d.Stop()
			return nil
		},
	}
}
