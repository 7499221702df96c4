package main

import (
	"context"
	"log"

	"github.com/duragraph/duragraph/internal/app"
	"github.com/duragraph/duragraph/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunServer(context.Background(), cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
