package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/MattKevan/uxlift-pipeline/internal/app"
	"github.com/MattKevan/uxlift-pipeline/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
