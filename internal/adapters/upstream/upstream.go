// Package upstream fetches challenge data from the game API.
package upstream

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/slashboard/internal/domain/model"
)

var (
	// ErrNoData means the account has not unlocked the mode or has no runs.
	ErrNoData = errors.New("upstream: no challenge data")
	// ErrUnauthorized means the account credential was rejected.
	ErrUnauthorized = errors.New("upstream: unauthorized")
	// ErrUpstream wraps any other failed or non-success response.
	ErrUpstream = errors.New("upstream: request failed")
)

// Profile is the account's basic in-game info.
type Profile struct {
	UID  string
	Name string
}

// Challenge is one challenge result as reported by the game API.
type Challenge struct {
	ChallengeID   int                     `json:"challengeId"`
	ChallengeName string                  `json:"challengeName"`
	RankTier      string                  `json:"rank"`
	Score         int64                   `json:"score"`
	Halves        []model.CompositionHalf `json:"halfList"`
}

// Submission converts the challenge into an ingestion payload.
func (c Challenge) Submission(acct model.Account, p Profile) model.Submission {
	return model.Submission{
		AccountID:     acct.AccountID,
		ExternalUID:   acct.ExternalUID,
		Name:          strings.TrimSpace(p.Name),
		ChallengeID:   c.ChallengeID,
		ChallengeName: c.ChallengeName,
		RankTier:      c.RankTier,
		Score:         c.Score,
		Halves:        model.ClampHalves(c.Halves),
	}
}

// RoleDetail is the catalog and progression info of one owned character.
type RoleDetail struct {
	ID     int    `json:"roleId"`
	Name   string `json:"roleName"`
	Rarity int    `json:"starLevel"`
	Level  int    `json:"level"`
	Chain  int    `json:"chainUnlockNum"`
}

// Client fetches an account's profile and challenge results.
type Client interface {
	// FetchChallenges returns the results of the account's unlocked
	// challenges. ErrNoData is returned when nothing is unlocked.
	FetchChallenges(ctx context.Context, acct model.Account) (Profile, []Challenge, error)
	// RoleDetails returns the account's owned characters keyed by role id.
	RoleDetails(ctx context.Context, acct model.Account) (map[int]RoleDetail, error)
}

// Enrich fills each character slot from details and drops slots without a
// role id. A slot with no detail keeps whatever the challenge reported.
func Enrich(halves []model.CompositionHalf, details map[int]RoleDetail) []model.CompositionHalf {
	out := make([]model.CompositionHalf, len(halves))
	for i, h := range halves {
		chars := make([]model.CharacterRef, 0, len(h.Characters))
		for _, c := range h.Characters {
			if c.ID == 0 {
				continue
			}
			if d, ok := details[c.ID]; ok {
				c.Name = firstNonEmpty(d.Name, c.Name)
				c.Rarity = firstNonZero(d.Rarity, c.Rarity)
				c.Level = firstNonZero(d.Level, c.Level)
				c.Chain = firstNonZero(d.Chain, c.Chain)
			}
			chars = append(chars, c)
		}
		h.Characters = chars
		out[i] = h
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// Only keeps challenges with the given id.
func Only(challenges []Challenge, challengeID int) []Challenge {
	var out []Challenge
	for _, c := range challenges {
		if c.ChallengeID == challengeID && c.ChallengeName != "" {
			out = append(out, c)
		}
	}
	return out
}
