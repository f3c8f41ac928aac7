package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for model errors.
var (
	ErrInvalidSubmission    = errors.New("invalid submission")
	ErrMalformedComposition = errors.New("malformed composition")
)

// Submission is one challenge-run payload for a game account.
type Submission struct {
	AccountID     string            `json:"account_id"`
	ExternalUID   string            `json:"external_uid"`
	Name          string            `json:"name"`
	ChallengeID   int               `json:"challenge_id"`
	ChallengeName string            `json:"challenge_name"`
	RankTier      string            `json:"rank"`
	Score         int64             `json:"score"`
	Halves        []CompositionHalf `json:"half_list"`
}

// Key returns the record key the submission is stored under.
func (s Submission) Key() string {
	return fmt.Sprintf("%s/%s/%d", s.AccountID, s.ExternalUID, s.ChallengeID)
}

// Validate reports whether the submission carries the required fields.
func (s Submission) Validate() error {
	switch {
	case strings.TrimSpace(s.AccountID) == "":
		return fmt.Errorf("%w: missing account_id", ErrInvalidSubmission)
	case strings.TrimSpace(s.ExternalUID) == "":
		return fmt.Errorf("%w: missing external_uid", ErrInvalidSubmission)
	case s.ChallengeID <= 0:
		return fmt.Errorf("%w: challenge_id must be positive", ErrInvalidSubmission)
	case s.Score < 0:
		return fmt.Errorf("%w: score must not be negative", ErrInvalidSubmission)
	}
	return nil
}

// Normalized trims identifiers and clamps the composition.
func (s Submission) Normalized() Submission {
	s.AccountID = strings.TrimSpace(s.AccountID)
	s.ExternalUID = strings.TrimSpace(s.ExternalUID)
	s.Name = strings.TrimSpace(s.Name)
	s.RankTier = strings.TrimSpace(s.RankTier)
	s.Halves = ClampHalves(s.Halves)
	return s
}
