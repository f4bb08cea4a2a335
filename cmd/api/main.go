package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pollchain/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config (.env, CONFIG_FILE, environment).
// 2) Build app wiring on the selected ledger backend.
// 3) Serve until SIGINT/SIGTERM, then drain.
func main() {
	log.Println("pollchain api starting")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("pollchain api stopped with error: %v", err)
	}
}
