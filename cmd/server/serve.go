package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"menagerie/server/internal/app"
	"menagerie/server/internal/config"
	"menagerie/server/internal/telemetry"
)

func ServeCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the simulation and inspector server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := log.New(os.Stderr, "[menagerie] ", log.LstdFlags)
			return app.Run(ctx, cfg, telemetry.WrapLogger(logger))
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "hjson config file")
	return c
}
