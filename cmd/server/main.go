// Package main is the entry point for the ticketflow server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (flags, config file, .env, environment)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// USAGE:
//
//	ticketflow [--config ticketflow.yaml] [--port 8080] [--env-file .env]
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/sakif/ticketflow/internal/config"
	"github.com/sakif/ticketflow/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "ticketflow: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// === 1. FLAGS ===
	// pflag gives GNU-style --long and -s flags. ContinueOnError returns
	// parse errors (and ErrHelp for --help) instead of exiting.
	flags := pflag.NewFlagSet("ticketflow", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	envFile := flags.String("env-file", ".env", "dotenv file loaded into the environment if present")
	port := flags.IntP("port", "p", 0, "listen port (overrides config and PORT)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// === 2. CONFIGURATION ===
	cfg, err := config.Load(config.Options{ConfigFile: *configPath, EnvFile: *envFile})
	if err != nil {
		return err
	}
	if flags.Changed("port") {
		cfg.Port = *port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// === 3. LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	level, _ := cfg.SlogLevel() // validated by Load
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.Auth.PasswordHashing == config.HashingPlain {
		logger.Warn("passwords are stored as typed; set PASSWORD_HASHING=bcrypt for real deployments")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}
