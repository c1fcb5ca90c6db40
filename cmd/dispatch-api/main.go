// dispatch-api serves the Dispatch content API from memory.
//
// It exposes token login and CRUD with search over tags, topics, sections,
// persons, articles, images and polls under /api/, plus the /admin/ control
// plane for resets, fault injection and clock control.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dispatch-cms/dispatch/internal/api"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if err := run(context.Background(), apicore.ParseFlags("dispatch-api")); err != nil {
		fmt.Fprintf(os.Stderr, "dispatch-api: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a shutdown signal arrives. The app is
// closed on every return path.
func run(ctx context.Context, cfg *apicore.Config) error {
	app, err := api.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer app.Close()

	if err := app.Server.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
