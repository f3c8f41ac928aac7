// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Composition limits.
const (
	MaxHalves           = 2
	MaxCharactersInHalf = 3
)

// CharacterRef is one character slot of a team composition.
type CharacterRef struct {
	ID      int    `json:"roleId"`
	Name    string `json:"roleName"`
	Rarity  int    `json:"starLevel"`
	Level   int    `json:"level"`
	Chain   int    `json:"chain"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Key returns the character id as an asset identifier.
func (c CharacterRef) Key() string { return strconv.Itoa(c.ID) }

// CompositionHalf is one of up to two team setups of a challenge attempt.
type CompositionHalf struct {
	Score           int            `json:"score"`
	BuffName        string         `json:"buffName"`
	BuffDescription string         `json:"buffDescription"`
	BuffIcon        string         `json:"buffIcon"`
	BuffQuality     int            `json:"buffQuality"`
	Characters      []CharacterRef `json:"roleList"`
}

// ChallengeRecord is the single current submission for
// (account, external uid, challenge). Rows are overwritten, never appended.
type ChallengeRecord struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     string         `gorm:"column:account_id;not null;uniqueIndex:idx_record_key,priority:1;index" json:"account_id"`
	ExternalUID   string         `gorm:"column:external_uid;not null;uniqueIndex:idx_record_key,priority:2;index" json:"external_uid"`
	ChallengeID   int            `gorm:"column:challenge_id;not null;uniqueIndex:idx_record_key,priority:3" json:"challenge_id"`
	Name          string         `gorm:"column:name" json:"name"`
	ChallengeName string         `gorm:"column:challenge_name" json:"challenge_name"`
	RankTier      string         `gorm:"column:rank_tier" json:"rank_tier"`
	Score         int64          `gorm:"column:score;not null;default:0" json:"score"`
	Halves        datatypes.JSON `gorm:"column:half_list" json:"half_list"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName pins the table name.
func (ChallengeRecord) TableName() string { return "challenge_records" }

// Pair identifies a leaderboard participant.
type Pair struct {
	AccountID   string
	ExternalUID string
}

// Pair returns the participant key of the record.
func (r ChallengeRecord) Pair() Pair {
	return Pair{AccountID: r.AccountID, ExternalUID: r.ExternalUID}
}

// ParseHalves decodes a stored composition blob. Empty input yields no
// halves and no error.
func ParseHalves(raw []byte) ([]CompositionHalf, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var halves []CompositionHalf
	if err := json.Unmarshal(raw, &halves); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedComposition, err)
	}
	return ClampHalves(halves), nil
}

// EncodeHalves serializes halves for storage.
func EncodeHalves(halves []CompositionHalf) (datatypes.JSON, error) {
	if halves == nil {
		halves = []CompositionHalf{}
	}
	raw, err := json.Marshal(ClampHalves(halves))
	if err != nil {
		return nil, fmt.Errorf("encode halves: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// ClampHalves enforces the composition limits.
func ClampHalves(halves []CompositionHalf) []CompositionHalf {
	if len(halves) > MaxHalves {
		halves = halves[:MaxHalves]
	}
	out := make([]CompositionHalf, len(halves))
	for i, h := range halves {
		if len(h.Characters) > MaxCharactersInHalf {
			h.Characters = h.Characters[:MaxCharactersInHalf]
		}
		out[i] = h
	}
	return out
}
