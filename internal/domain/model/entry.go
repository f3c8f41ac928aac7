package model

import "strings"

// LeaderboardEntry is the in-memory view of a record used for ranking.
type LeaderboardEntry struct {
	AccountID   string            `json:"account_id"`
	ExternalUID string            `json:"external_uid"`
	Name        string            `json:"name"`
	Score       int64             `json:"score"`
	RankTier    string            `json:"rank_tier"`
	Halves      []CompositionHalf `json:"half_list"`
}

// RankedEntry is an entry placed at a 1-based rank.
type RankedEntry struct {
	LeaderboardEntry
	Rank      int  `json:"rank"`
	Highlight bool `json:"highlight"`
}

// NewEntry maps a record to an entry. Halves are supplied by the caller so a
// malformed blob can be replaced without failing the mapping.
func NewEntry(r ChallengeRecord, halves []CompositionHalf) LeaderboardEntry {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = MaskUID(r.ExternalUID)
	}
	return LeaderboardEntry{
		AccountID:   r.AccountID,
		ExternalUID: r.ExternalUID,
		Name:        name,
		Score:       r.Score,
		RankTier:    strings.ToLower(strings.TrimSpace(r.RankTier)),
		Halves:      halves,
	}
}

// MaskUID hides the middle of a game uid, keeping two characters on each side.
func MaskUID(uid string) string {
	runes := []rune(uid)
	if len(runes) <= 4 {
		return strings.Repeat("*", 4)
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}

// CharacterKeys returns the distinct character ids referenced by the entry, in
// first-seen order.
func (e LeaderboardEntry) CharacterKeys() []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, h := range e.Halves {
		for _, c := range h.Characters {
			if c.ID == 0 {
				continue
			}
			k := c.Key()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}
