// Package leaderboard ranks stored challenge records for display.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// Defaults for a board request.
const (
	DefaultTopN        = 20
	DefaultChallengeID = 12
)

// Reader is the subset of the record store the aggregator needs.
type Reader interface {
	BatchFetch(ctx context.Context, pairs []model.Pair, challengeID int) []model.ChallengeRecord
	TopPerUID(ctx context.Context, challengeID int) []model.ChallengeRecord
}

// Request describes one scoped board.
type Request struct {
	Bindings         []model.Binding
	ChallengeID      int
	RequesterAccount string
	RequesterUID     string
	TopN             int
}

// Stats summarizes the full ranked list, not just the displayed rows.
type Stats struct {
	MaxScore  int64  `json:"max_score"`
	MaxName   string `json:"max_name"`
	MeanScore int64  `json:"mean_score"`
	Total     int    `json:"total"`
}

// Board is the outcome of an aggregation.
type Board struct {
	Rows []model.RankedEntry `json:"rows"`
	// Self is the requester's row when it ranks below the displayed window.
	Self *model.RankedEntry `json:"self,omitempty"`
	// RequesterRank is the 1-based rank of the requester, 0 when absent.
	RequesterRank int   `json:"requester_rank"`
	Stats         Stats `json:"stats"`
}

// Empty reports whether there is nothing to draw.
func (b Board) Empty() bool { return len(b.Rows) == 0 }

// Drawn returns the display rows followed by the requester row, if any.
func (b Board) Drawn() []model.RankedEntry {
	if b.Self == nil {
		return b.Rows
	}
	out := make([]model.RankedEntry, 0, len(b.Rows)+1)
	out = append(out, b.Rows...)
	return append(out, *b.Self)
}

// AvatarIDs lists the distinct account ids of drawn rows.
func (b Board) AvatarIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, e := range b.Drawn() {
		if _, ok := seen[e.AccountID]; ok || e.AccountID == "" {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	return ids
}

// IconIDs lists the distinct character ids of drawn rows.
func (b Board) IconIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, e := range b.Drawn() {
		for _, k := range e.CharacterKeys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			ids = append(ids, k)
		}
	}
	return ids
}

// Aggregator builds boards from the record store.
type Aggregator struct {
	store  Reader
	logger logger.Logger
}

// New creates an aggregator over store.
func New(store Reader, opts ...Option) *Aggregator {
	a := &Aggregator{store: store}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("leaderboard")
	}
	return a
}

// Build ranks every record of the bound game accounts. The store is queried
// once for all pairs and the result is fully loaded before ranking.
func (a *Aggregator) Build(ctx context.Context, req Request) Board {
	start := time.Now()
	pairs := model.Pairs(req.Bindings)
	if len(pairs) == 0 {
		metrics.RecordLeaderboardBuild("scope", "empty")
		return Board{}
	}

	records := a.store.BatchFetch(ctx, pairs, challengeOrDefault(req.ChallengeID))
	board := Rank(a.entries(ctx, records), req.RequesterUID, req.TopN)
	a.observe(ctx, "scope", board, start)
	return board
}

// BuildGlobal ranks the best record of every game account.
func (a *Aggregator) BuildGlobal(ctx context.Context, challengeID int, requesterUID string, topN int) Board {
	start := time.Now()
	records := a.store.TopPerUID(ctx, challengeOrDefault(challengeID))
	board := Rank(a.entries(ctx, records), requesterUID, topN)
	a.observe(ctx, "global", board, start)
	return board
}

func (a *Aggregator) observe(ctx context.Context, kind string, b Board, start time.Time) {
	outcome := "ok"
	if b.Empty() {
		outcome = "empty"
	}
	metrics.RecordLeaderboardBuild(kind, outcome)
	metrics.RecordLeaderboardEntries(b.Stats.Total)
	a.logger.Debug(ctx, "leaderboard built",
		logger.String("kind", kind),
		logger.Int("total", b.Stats.Total),
		logger.Int("requesterRank", b.RequesterRank),
		logger.Int64("elapsedUs", time.Since(start).Microseconds()),
	)
}

// entries maps records to entries. A record with an unreadable composition
// keeps its score and loses only the composition.
func (a *Aggregator) entries(ctx context.Context, records []model.ChallengeRecord) []model.LeaderboardEntry {
	out := make([]model.LeaderboardEntry, 0, len(records))
	for _, r := range records {
		halves, err := model.ParseHalves(r.Halves)
		if err != nil {
			a.logger.Warn(ctx, "dropping malformed composition",
				logger.String("account", r.AccountID),
				logger.String("uid", r.ExternalUID),
				logger.Error(err),
			)
			halves = nil
		}
		out = append(out, model.NewEntry(r, halves))
	}
	return out
}

// Rank orders entries by score, highest first, keeping input order among
// equal scores. The requester is identified by external uid alone; the first
// match wins.
func Rank(entries []model.LeaderboardEntry, requesterUID string, topN int) Board {
	if len(entries) == 0 {
		return Board{}
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	sorted := make([]model.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	self := -1
	if requesterUID != "" {
		for i, e := range sorted {
			if e.ExternalUID == requesterUID {
				self = i
				break
			}
		}
	}

	n := min(topN, len(sorted))
	rows := make([]model.RankedEntry, n)
	for i := 0; i < n; i++ {
		rows[i] = model.RankedEntry{LeaderboardEntry: sorted[i], Rank: i + 1, Highlight: i == self}
	}

	b := Board{Rows: rows, Stats: summarize(sorted)}
	if self >= 0 {
		b.RequesterRank = self + 1
		if self >= topN {
			b.Self = &model.RankedEntry{LeaderboardEntry: sorted[self], Rank: self + 1, Highlight: true}
		}
	}
	return b
}

// summarize expects entries sorted by score, highest first.
func summarize(sorted []model.LeaderboardEntry) Stats {
	if len(sorted) == 0 {
		return Stats{}
	}
	var sum int64
	for _, e := range sorted {
		sum += e.Score
	}
	return Stats{
		MaxScore:  sorted[0].Score,
		MaxName:   sorted[0].Name,
		MeanScore: sum / int64(len(sorted)),
		Total:     len(sorted),
	}
}

func challengeOrDefault(id int) int {
	if id <= 0 {
		return DefaultChallengeID
	}
	return id
}
