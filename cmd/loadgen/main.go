package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/slashboard/internal/loadgen"
	"github.com/okian/slashboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers      = 200
	defaultRuns         = 3
	defaultChallengeID  = 12
	defaultTopN         = 50
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultDrainTimeout = 2 * time.Minute
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		scope       = flag.String("scope", "", "Binding scope for generated players")
		players     = flag.Int("players", defaultPlayers, "Number of game accounts to bind")
		runs        = flag.Int("runs", defaultRuns, "Runs submitted per game account")
		challengeID = flag.Int("challenge", defaultChallengeID, "Challenge id of the submitted runs")
		topN        = flag.Int("top", defaultTopN, "Number of leaderboard rows to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain       = flag.Duration("drain", defaultDrainTimeout, "Upper bound on waiting for the ingest queue")
		outputFile  = flag.String("output", "", "Output file for generated players")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *scope == "" {
		*scope = "loadgen-" + time.Now().Format("20060102_150405")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:       *baseURL,
		Scope:         *scope,
		NumPlayers:    *players,
		RunsPerPlayer: *runs,
		ChallengeID:   *challengeID,
		TopN:          *topN,
		Workers:       *workers,
		Timeout:       *timeout,
		DrainTimeout:  *drain,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		_ = logger.Sync()
		os.Exit(1)
	}
}
