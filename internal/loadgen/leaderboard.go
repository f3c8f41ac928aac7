package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/slashboard/pkg/logger"
)

// getLeaderboard fetches the scope board as JSON, requested as the given
// game account.
func getLeaderboard(ctx context.Context, cfg *Config, requester Player, stats *Stats) (Board, error) {
	logger.Get().Info(ctx, "getting leaderboard", logger.String("scope", cfg.Scope), logger.Int("topN", cfg.TopN))

	q := url.Values{}
	q.Set("scope", cfg.Scope)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(cfg.TopN))
	q.Set("account", requester.AccountID)
	q.Set("uid", requester.ExternalUID)

	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Get(ctx, cfg.BaseURL+"/leaderboard?"+q.Encode())
	if err != nil {
		return Board{}, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return Board{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return Board{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var board Board
	if err := json.Unmarshal(body, &board); err != nil {
		return Board{}, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(board.Rows)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("rows", len(board.Rows)), logger.Int("total", board.Stats.Total))
	return board, nil
}
