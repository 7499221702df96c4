package main

import (
	"context"
	"log"

	"github.com/duragraph/duragraph/internal/app"
	"github.com/duragraph/duragraph/internal/config"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				log.Fatalf("failed to load config: %v", err)
			}
			return app.RunServer(context.Background(), cfg)
		},
	}
}
