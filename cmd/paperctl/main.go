package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"gwi.com/paper-assistant/internal/app"
	"gwi.com/paper-assistant/internal/cli"
	"gwi.com/paper-assistant/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Debug() {
		// Keep pipeline logging out of the terminal unless asked for.
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := cli.Options{
		JWTSecret: cfg.JWTSecret,
		Open: func(ctx context.Context) (*cli.Services, error) {
			if cfg.GeminiAPIKey == "" {
				return nil, errors.New("GEMINI_API_KEY environment variable is required")
			}
			a, err := app.Build(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return &cli.Services{Sessions: a.Sessions, Chat: a.Chat, Close: a.Close}, nil
		},
	}

	if err := cli.Run(ctx, opts, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
