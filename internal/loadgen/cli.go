package loadgen

import (
	"fmt"
	"os"

	"github.com/okian/slashboard/pkg/logger"
)

// SetupLogging initializes the global logger at the given level.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`slashboard load generator
=========================

Binds synthetic game accounts, submits challenge runs for them, and checks
that the scope leaderboard reflects the last run of every account.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -scope string
        Binding scope for generated players (default: loadgen-TIMESTAMP)
  -players int
        Number of game accounts to bind (default 200)
  -runs int
        Runs submitted per game account (default 3)
  -challenge int
        Challenge id of the runs; must match the service (default 12)
  -top int
        Number of leaderboard rows to fetch (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -drain duration
        Upper bound on waiting for the ingest queue per pass (default 2m)
  -output string
        Write generated players and runs to this JSON file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/loadgen

  # Larger run against another port
  go run ./cmd/loadgen -players 5000 -runs 2 -workers 16 -url http://localhost:8080
`)
}
