// Command server runs the avatar storage API.
//
// Configuration comes from the environment (and an optional .env file); see
// internal/config. Run with -hash-key to print a bcrypt hash suitable for
// AUTH_API_KEY_HASH instead of starting the server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/avatar-vault/internal/auth"
	"github.com/sakif/avatar-vault/internal/config"
	"github.com/sakif/avatar-vault/internal/logging"
	"github.com/sakif/avatar-vault/internal/server"
)

func main() {
	hashKey := flag.Bool("hash-key", false, "read an API key from stdin, print its bcrypt hash and exit")
	flag.Parse()

	if *hashKey {
		if err := printKeyHash(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		closer.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		closer.Close()
		os.Exit(1)
	}
}

func printKeyHash() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading key: %w", err)
	}
	hash, err := auth.HashAPIKey(strings.TrimSpace(line), auth.DefaultHashCost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
