// cmd/authgate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"authgate/internal/config"
	"authgate/internal/server"
)

func main() {
	configPath := flag.String("config", "", "gateway configuration file (defaults and AUTHGATE_* env apply without one)")
	flag.Parse()

	// Configuration is validated here; a rule list that would loop the
	// login form refuses to start
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration rejected: %v", err)
	}

	srv, err := server.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("Gateway setup failed: %v", err)
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for termination signal or server error
	select {
	case <-ctx.Done():
		fmt.Println("Signal received, draining connections...")
	case err := <-errCh:
		fmt.Printf("Gateway error: %v\n", err)
	}

	if err := srv.Stop(context.Background()); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}

	fmt.Println("Gateway stopped")
}
