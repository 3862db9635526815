package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/api"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/app"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/clock"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/notify"
)

func main() {
	configPath := flag.String("config", os.Getenv("NEST_CONFIG"), "path to nest.yml (defaults plus environment if empty)")
	accessLog := flag.Bool("access-log", true, "log every HTTP request")
	flag.Parse()

	// 1. Load .env and nest.yml
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireSecrets(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// 2. Connect to Redis
	ctx := context.Background()
	client, err := app.Connect(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// 3. Build the engines
	publisher := notify.NewPublisher(client, 0)
	engines, err := app.Build(cfg, client, clock.Real(), publisher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to build engines: %v\n", err)
		os.Exit(1)
	}

	server, err := api.New(api.Deps{
		Client:       client,
		Actors:       engines.Directory,
		Registry:     engines.Registry,
		Matcher:      engines.Matcher,
		Negotiations: engines.Negotiations,
		Ledger:       engines.Ledger,
		Visits:       engines.Visits,
		Payments:     engines.Payments,
		Clock:        clock.Real(),
		JWTSecret:    cfg.Auth.JWTSecret,
		Location:     cfg.Location(),
		AccessLog:    *accessLog,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create HTTP server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("nestd starting for instance '%s' on %s (timezone %s)\n", cfg.Instance, cfg.Server.Addr, cfg.Location())

	// 4. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// 5. Start sweeper and HTTP server
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		engines.Sweeper.Run(runCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr)
	}()

	// 6. Wait for shutdown signal or error
	exitCode := 0
	select {
	case sig := <-sigCh:
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
	case runErr := <-errCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "HTTP server error: %v\n", runErr)
			exitCode = 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: HTTP shutdown incomplete: %v\n", err)
	}

	cancel()
	<-sweepDone
	publisher.Wait()

	fmt.Println("nestd stopped")
	if exitCode != 0 {
		client.Close()
		os.Exit(exitCode)
	}
}
