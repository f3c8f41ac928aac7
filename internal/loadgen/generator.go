package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	tierDivisor        = 8
	uidBase            = 100000000
	uidRange           = 900000000
	characterBase      = 1101
	characterRange     = 500
	halfCount          = 2
	charactersPerHalf  = 3
	maxLevel           = 90
	maxChain           = 6
	minRarity          = 4
	rarityRange        = 2
)

// Score bands per performance tier.
const (
	avgPerformerMin    = 12000
	avgPerformerRange  = 8000
	highPerformerMin   = 20000
	highPerformerRange = 6000
	lowPerformerMin    = 1000
	lowPerformerRange  = 11000
	elitePerformerMin  = 26000
	elitePerformerRng  = 4000
	wideRangeMax       = 30000
)

// Constants for performance tier cases.
const (
	caseAveragePerformer = 0
	caseHighPerformer    = 1
	caseLowPerformer     = 2
	caseElitePerformer   = 3
)

var tierNames = []string{"C", "B", "A", "S", "SS", "SSS"}

// randomInt returns a value in [0, n) using crypto/rand.
func randomInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// getRandomFloat returns a random float64 between 0.0 and 1.0.
func getRandomFloat() float64 {
	return float64(randomInt(randomFloatDivisor)) / float64(randomFloatDivisor)
}

// generatePlayers creates players with unique account ids and game uids,
// each carrying cfg.RunsPerPlayer runs.
func generatePlayers(ctx context.Context, cfg *Config, stats *Stats) ([]Player, error) {
	logger.Get().Info(ctx, "generating players", logger.Int("players", cfg.NumPlayers), logger.Int("runsPerPlayer", cfg.RunsPerPlayer))

	players := make([]Player, cfg.NumPlayers)
	seen := make(map[string]struct{}, cfg.NumPlayers)
	for i := range players {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during player generation: %w", err)
		}
		uid := uniqueUID(seen)
		p := Player{
			AccountID:   uuid.NewString(),
			ExternalUID: uid,
			Name:        "player-" + strconv.Itoa(i+1),
		}
		p.Runs = make([]model.Submission, cfg.RunsPerPlayer)
		for r := range p.Runs {
			p.Runs[r] = generateRun(cfg.ChallengeID, p)
		}
		players[i] = p
	}

	stats.PlayersGenerated = len(players)
	logger.Get().Info(ctx, "generated players successfully", logger.Int("count", len(players)))
	return players, nil
}

// uniqueUID draws a nine-digit game uid not yet in seen.
func uniqueUID(seen map[string]struct{}) string {
	for {
		uid := strconv.FormatInt(uidBase+randomInt(uidRange), 10)
		if _, dup := seen[uid]; !dup {
			seen[uid] = struct{}{}
			return uid
		}
	}
}

// generateRun creates one run for the player with a varied score and a full
// two-half composition.
func generateRun(challengeID int, p Player) model.Submission {
	score := generateVariedScore()
	halves := make([]model.CompositionHalf, halfCount)
	for h := range halves {
		chars := make([]model.CharacterRef, charactersPerHalf)
		for c := range chars {
			chars[c] = model.CharacterRef{
				ID:     characterBase + int(randomInt(characterRange)),
				Rarity: minRarity + int(randomInt(rarityRange)),
				Level:  1 + int(randomInt(maxLevel)),
				Chain:  int(randomInt(maxChain + 1)),
			}
		}
		halves[h] = model.CompositionHalf{
			Score:      int(score / halfCount),
			Characters: chars,
		}
	}

	return model.Submission{
		AccountID:     p.AccountID,
		ExternalUID:   p.ExternalUID,
		Name:          p.Name,
		ChallengeID:   challengeID,
		ChallengeName: "Challenge " + strconv.Itoa(challengeID),
		RankTier:      tierNames[randomInt(int64(len(tierNames)))],
		Score:         score,
		Halves:        halves,
	}
}

// generateVariedScore draws a score from a skewed tier distribution.
func generateVariedScore() int64 {
	switch randomInt(tierDivisor) {
	case caseAveragePerformer:
		return avgPerformerMin + int64(getRandomFloat()*avgPerformerRange)
	case caseHighPerformer:
		return highPerformerMin + int64(getRandomFloat()*highPerformerRange)
	case caseLowPerformer:
		return lowPerformerMin + int64(getRandomFloat()*lowPerformerRange)
	case caseElitePerformer:
		return elitePerformerMin + int64(getRandomFloat()*elitePerformerRng)
	default:
		return int64(getRandomFloat() * wideRangeMax)
	}
}
