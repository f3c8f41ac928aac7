package loadgen

import (
	"time"

	"github.com/okian/slashboard/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Scope         string        // Binding scope every player joins
	NumPlayers    int           // Number of game accounts to bind
	RunsPerPlayer int           // Runs submitted per game account; the last one must win
	ChallengeID   int           // Challenge the runs are submitted for
	TopN          int           // Number of leaderboard rows to fetch
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	DrainTimeout  time.Duration // Upper bound on waiting for the ingest queue
	OutputFile    string        // Output file for generated players
	Verbose       bool          // Enable verbose logging
}

// Player is one bound game account and the runs it submits, oldest first.
type Player struct {
	AccountID   string             `json:"account_id"`
	ExternalUID string             `json:"external_uid"`
	Name        string             `json:"name"`
	Runs        []model.Submission `json:"runs"`
}

// FinalScore is the score of the last submitted run.
func (p Player) FinalScore() int64 {
	if len(p.Runs) == 0 {
		return 0
	}
	return p.Runs[len(p.Runs)-1].Score
}

// bindingRequest is the POST /bindings body.
type bindingRequest struct {
	Scope       string `json:"scope"`
	AccountID   string `json:"account_id"`
	ExternalUID string `json:"external_uid"`
	Primary     bool   `json:"primary"`
}

// Board is the JSON leaderboard response.
type Board struct {
	Rows          []model.RankedEntry `json:"rows"`
	RequesterRank int                 `json:"requester_rank"`
	Stats         struct {
		MaxScore  int64  `json:"max_score"`
		MaxName   string `json:"max_name"`
		MeanScore int64  `json:"mean_score"`
		Total     int    `json:"total"`
	} `json:"stats"`
}

// Stats holds run statistics.
type Stats struct {
	PlayersGenerated   int
	BindingsCreated    int
	BindingsFailed     int
	RunsSubmitted      int
	RunsAccepted       int
	RunsThrottled      int
	RunsFailed         int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
