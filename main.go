package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/avolkau/studysync/internal/config"
	"github.com/avolkau/studysync/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	command := os.Args[1]

	switch command {
	case "sync":
		if err := runSync(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "status":
		if err := runStatus(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "-h", "--help", "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// runSync forces one reconciliation run and waits for the queue to drain.
func runSync() error {
	cfg := config.NewConfig()
	client, err := entrypoint.NewSyncClient(cfg)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return err
	}

	if !client.Monitor.Probe(ctx) {
		return fmt.Errorf("remote authority unreachable at %s", cfg.Remote.BaseURL)
	}

	before, err := client.Offline.Status()
	if err != nil {
		return err
	}
	if before.PendingSyncCount == 0 {
		fmt.Println("Nothing to sync")
		return nil
	}

	fmt.Printf("Syncing %d pending operation(s)...\n", before.PendingSyncCount)
	client.Offline.ForceSync()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("sync timed out: %w", ctx.Err())
		case <-ticker.C:
			status, err := client.Offline.Status()
			if err != nil {
				return err
			}
			if status.PendingSyncCount == 0 && !client.Engine.IsDraining() {
				fmt.Println("Sync complete")
				return nil
			}
		}
	}
}

// runStatus prints connectivity and pending queue depth as JSON.
func runStatus() error {
	cfg := config.NewConfig()
	client, err := entrypoint.NewSyncClient(cfg)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client.Monitor.Probe(ctx)

	status, err := client.Offline.Status()
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve   Start the progress tracking server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  sync    Replay queued offline operations against the remote authority\n")
	fmt.Fprintf(os.Stderr, "  status  Show connectivity state and pending queue depth\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
