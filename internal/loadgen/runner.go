package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/slashboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run binds generated players, submits their runs, and checks the resulting
// leaderboard.
func Run(ctx context.Context, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting slashboard load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("scope", cfg.Scope),
		logger.Int("players", cfg.NumPlayers),
		logger.Int("runsPerPlayer", cfg.RunsPerPlayer),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Int("topN", cfg.TopN),
		logger.Any("verbose", cfg.Verbose))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	players, err := generatePlayers(ctx, cfg, stats)
	if err != nil {
		return fmt.Errorf("player generation failed: %w", err)
	}

	if err := bindPlayers(ctx, cfg, players, stats); err != nil {
		return fmt.Errorf("binding failed: %w", err)
	}

	if err := submitRuns(ctx, cfg, players, stats); err != nil {
		return fmt.Errorf("submission failed: %w", err)
	}

	requester := players[len(players)-1]
	board, err := getLeaderboard(ctx, cfg, requester, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verifyResults(ctx, cfg, players, requester, board); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := savePlayersToFile(ctx, cfg.OutputFile, players); err != nil {
			logger.Get().Warn(ctx, "failed to save players to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "load run completed successfully")
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url must not be empty")
	case c.Scope == "":
		return errors.New("scope must not be empty")
	case c.NumPlayers <= 0:
		return errors.New("players must be positive")
	case c.RunsPerPlayer <= 0:
		return errors.New("runs per player must be positive")
	case c.ChallengeID <= 0:
		return errors.New("challenge id must be positive")
	case c.TopN <= 0:
		return errors.New("top must be positive")
	case c.DrainTimeout <= 0:
		return errors.New("drain timeout must be positive")
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Get(ctx, cfg.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_, _ = readResponseBody(resp)

	// The service answers health checks with Prometheus metrics.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePlayersToFile writes the generated players and their runs as JSON.
func savePlayersToFile(ctx context.Context, filename string, players []Player) error {
	if len(players) == 0 {
		return errors.New("no players to save")
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(players, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal players: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "players saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, runsPerSecond float64

	if stats.RunsSubmitted > 0 {
		successRate = float64(stats.RunsAccepted) / float64(stats.RunsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		runsPerSecond = float64(stats.RunsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("playersGenerated", stats.PlayersGenerated),
		logger.Int("bindingsCreated", stats.BindingsCreated),
		logger.Int("runsSubmitted", stats.RunsSubmitted),
		logger.Int("runsAccepted", stats.RunsAccepted),
		logger.Int("runsThrottled", stats.RunsThrottled),
		logger.Int("runsFailed", stats.RunsFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("runsPerSecond", runsPerSecond))
}
