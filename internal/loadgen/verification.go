package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/slashboard/pkg/logger"
)

// ErrVerification marks a board that disagrees with the submitted runs.
var ErrVerification = errors.New("leaderboard verification failed")

// verifyResults checks the board against the final run of every player.
func verifyResults(ctx context.Context, cfg *Config, players []Player, requester Player, board Board) error {
	logger.Get().Info(ctx, "verifying results")

	if len(players) == 0 {
		return fmt.Errorf("%w: no players to verify", ErrVerification)
	}

	expected := expectedScores(players)
	if err := verifyLeaderboardConsistency(expected, players, requester, board, cfg.TopN); err != nil {
		return err
	}

	displayTopPerformers(ctx, board, cfg.Verbose)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// expectedScores returns every final score, highest first.
func expectedScores(players []Player) []int64 {
	scores := make([]int64, len(players))
	for i, p := range players {
		scores[i] = p.FinalScore()
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i] > scores[j] })
	return scores
}

// verifyLeaderboardConsistency compares row count, score order, per-player
// final scores, participant total and the requester's rank. Equal scores may
// appear in any order, so ranks are checked against the score sequence.
func verifyLeaderboardConsistency(expected []int64, players []Player, requester Player, board Board, topN int) error {
	want := min(topN, len(expected))
	if len(board.Rows) != want {
		return fmt.Errorf("%w: %d rows, expected %d", ErrVerification, len(board.Rows), want)
	}
	if board.Stats.Total != len(players) {
		return fmt.Errorf("%w: total %d, expected %d", ErrVerification, board.Stats.Total, len(players))
	}
	if board.Stats.MaxScore != expected[0] {
		return fmt.Errorf("%w: max score %d, expected %d", ErrVerification, board.Stats.MaxScore, expected[0])
	}

	final := make(map[string]int64, len(players))
	for _, p := range players {
		final[p.ExternalUID] = p.FinalScore()
	}

	for i, row := range board.Rows {
		if row.Score != expected[i] {
			return fmt.Errorf("%w: row %d scored %d, expected %d", ErrVerification, i+1, row.Score, expected[i])
		}
		if row.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrVerification, i+1, row.Rank)
		}
		score, ok := final[row.ExternalUID]
		if !ok {
			return fmt.Errorf("%w: unknown uid %s on row %d", ErrVerification, row.ExternalUID, i+1)
		}
		if score != row.Score {
			return fmt.Errorf("%w: uid %s shows %d, last run was %d", ErrVerification, row.ExternalUID, row.Score, score)
		}
	}

	// The requester's rank is the position of its score in the ordering; ties
	// only allow a range of positions.
	mine := requester.FinalScore()
	first, last := 0, 0
	for i, s := range expected {
		if s == mine {
			if first == 0 {
				first = i + 1
			}
			last = i + 1
		}
	}
	if board.RequesterRank < first || board.RequesterRank > last {
		return fmt.Errorf("%w: requester rank %d, expected between %d and %d", ErrVerification, board.RequesterRank, first, last)
	}
	return nil
}

// displayTopPerformers logs the head of the board.
func displayTopPerformers(ctx context.Context, board Board, verbose bool) {
	topN := min(10, len(board.Rows))
	for _, row := range board.Rows[:topN] {
		logger.Get().Info(ctx, "top performer",
			logger.Int("rank", row.Rank),
			logger.String("uid", row.ExternalUID),
			logger.String("name", row.Name),
			logger.Int64("score", row.Score))
	}

	if verbose {
		logger.Get().Info(ctx, "score statistics",
			logger.Int64("max", board.Stats.MaxScore),
			logger.String("maxName", board.Stats.MaxName),
			logger.Int64("mean", board.Stats.MeanScore),
			logger.Int("participants", board.Stats.Total))
	}
}
