package leaderboard_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/datatypes"

	"github.com/okian/slashboard/internal/domain/leaderboard"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeReader struct {
	records    []model.ChallengeRecord
	batchCalls int
	lastPairs  []model.Pair
	lastID     int
}

func (f *fakeReader) BatchFetch(_ context.Context, pairs []model.Pair, challengeID int) []model.ChallengeRecord {
	f.batchCalls++
	f.lastPairs = pairs
	f.lastID = challengeID
	want := make(map[model.Pair]bool, len(pairs))
	for _, p := range pairs {
		want[p] = true
	}
	var out []model.ChallengeRecord
	for _, r := range f.records {
		if want[r.Pair()] && r.ChallengeID == challengeID {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeReader) TopPerUID(_ context.Context, challengeID int) []model.ChallengeRecord {
	best := map[string]int{}
	var order []string
	for i, r := range f.records {
		if r.ChallengeID != challengeID {
			continue
		}
		j, ok := best[r.ExternalUID]
		if !ok {
			order = append(order, r.ExternalUID)
			best[r.ExternalUID] = i
			continue
		}
		if r.Score > f.records[j].Score {
			best[r.ExternalUID] = i
		}
	}
	out := make([]model.ChallengeRecord, 0, len(order))
	for _, uid := range order {
		out = append(out, f.records[best[uid]])
	}
	return out
}

func rec(account, uid string, score int64) model.ChallengeRecord {
	return model.ChallengeRecord{AccountID: account, ExternalUID: uid, ChallengeID: 12, Name: "n-" + uid, Score: score}
}

func newAggregator(r leaderboard.Reader) *leaderboard.Aggregator {
	return leaderboard.New(r, leaderboard.WithLogger(logger.Nop()))
}

func TestBuildWorkedExample(t *testing.T) {
	Convey("Given three game accounts across two platform accounts", t, func() {
		reader := &fakeReader{records: []model.ChallengeRecord{
			rec("A", "u1", 500),
			rec("B", "u2", 900),
			rec("B", "u3", 100),
		}}
		bindings := []model.Binding{
			{AccountID: "A", ExternalUIDs: []string{"u1"}},
			{AccountID: "B", ExternalUIDs: []string{"u2", "u3"}},
		}
		agg := newAggregator(reader)

		Convey("When B asks with u3 and topN 2", func() {
			b := agg.Build(context.Background(), leaderboard.Request{
				Bindings:         bindings,
				ChallengeID:      12,
				RequesterAccount: "B",
				RequesterUID:     "u3",
				TopN:             2,
			})

			Convey("Then the store is queried once with every pair", func() {
				So(reader.batchCalls, ShouldEqual, 1)
				So(len(reader.lastPairs), ShouldEqual, 3)
			})

			Convey("Then the display list is u2 then u1", func() {
				So(len(b.Rows), ShouldEqual, 2)
				So(b.Rows[0].ExternalUID, ShouldEqual, "u2")
				So(b.Rows[0].Score, ShouldEqual, 900)
				So(b.Rows[0].Rank, ShouldEqual, 1)
				So(b.Rows[1].ExternalUID, ShouldEqual, "u1")
				So(b.Rows[1].Rank, ShouldEqual, 2)
				So(b.Rows[0].Highlight || b.Rows[1].Highlight, ShouldBeFalse)
			})

			Convey("Then u3 is an extra highlighted row at rank 3", func() {
				So(b.Self, ShouldNotBeNil)
				So(b.Self.ExternalUID, ShouldEqual, "u3")
				So(b.Self.Rank, ShouldEqual, 3)
				So(b.Self.Score, ShouldEqual, 100)
				So(b.Self.Highlight, ShouldBeTrue)
				So(b.RequesterRank, ShouldEqual, 3)
			})

			Convey("Then stats cover the full list", func() {
				So(b.Stats.MaxScore, ShouldEqual, 900)
				So(b.Stats.MaxName, ShouldEqual, "n-u2")
				So(b.Stats.MeanScore, ShouldEqual, 500)
				So(b.Stats.Total, ShouldEqual, 3)
			})

			Convey("Then asset ids cover the drawn rows", func() {
				So(b.AvatarIDs(), ShouldResemble, []string{"B", "A"})
				So(len(b.Drawn()), ShouldEqual, 3)
			})
		})

		Convey("When B asks with u2, already visible", func() {
			b := agg.Build(context.Background(), leaderboard.Request{
				Bindings: bindings, ChallengeID: 12, RequesterAccount: "B", RequesterUID: "u2", TopN: 2,
			})

			Convey("Then no extra row is added and u2 is highlighted in place", func() {
				So(b.Self, ShouldBeNil)
				So(b.Rows[0].Highlight, ShouldBeTrue)
				So(b.RequesterRank, ShouldEqual, 1)
			})
		})

		Convey("When the requester has no record", func() {
			b := agg.Build(context.Background(), leaderboard.Request{
				Bindings: bindings, ChallengeID: 12, RequesterUID: "u9", TopN: 2,
			})
			So(b.Self, ShouldBeNil)
			So(b.RequesterRank, ShouldEqual, 0)
		})
	})
}

func TestBuildEmpty(t *testing.T) {
	Convey("Given no bindings", t, func() {
		reader := &fakeReader{records: []model.ChallengeRecord{rec("A", "u1", 1)}}
		b := newAggregator(reader).Build(context.Background(), leaderboard.Request{ChallengeID: 12})

		Convey("Then the board is empty and the store is not queried", func() {
			So(b.Empty(), ShouldBeTrue)
			So(b.Self, ShouldBeNil)
			So(reader.batchCalls, ShouldEqual, 0)
		})
	})

	Convey("Given bindings without records", t, func() {
		reader := &fakeReader{}
		b := newAggregator(reader).Build(context.Background(), leaderboard.Request{
			Bindings: []model.Binding{{AccountID: "A", ExternalUIDs: []string{"u1"}}},
		})
		So(b.Empty(), ShouldBeTrue)
		So(b.Stats, ShouldResemble, leaderboard.Stats{})
		So(reader.lastID, ShouldEqual, leaderboard.DefaultChallengeID)
	})
}

func TestRankOrdering(t *testing.T) {
	Convey("Given entries with ties", t, func() {
		entries := []model.LeaderboardEntry{
			{ExternalUID: "a", Score: 10},
			{ExternalUID: "b", Score: 30},
			{ExternalUID: "c", Score: 10},
			{ExternalUID: "d", Score: 30},
			{ExternalUID: "e", Score: 20},
		}
		b := leaderboard.Rank(entries, "", 10)

		Convey("Then scores are non-increasing and ties keep input order", func() {
			var uids []string
			for i, r := range b.Rows {
				uids = append(uids, r.ExternalUID)
				if i > 0 {
					So(b.Rows[i-1].Score, ShouldBeGreaterThanOrEqualTo, r.Score)
				}
			}
			So(uids, ShouldResemble, []string{"b", "d", "e", "a", "c"})
		})

		Convey("Then the input slice is left untouched", func() {
			So(entries[0].ExternalUID, ShouldEqual, "a")
		})

		Convey("Then the mean is floored", func() {
			So(b.Stats.MeanScore, ShouldEqual, 20)
		})
	})

	Convey("A non-positive topN uses the default window", t, func() {
		entries := make([]model.LeaderboardEntry, 30)
		for i := range entries {
			entries[i] = model.LeaderboardEntry{ExternalUID: string(rune('a' + i)), Score: int64(i)}
		}
		b := leaderboard.Rank(entries, string(rune('a')), 0)
		So(len(b.Rows), ShouldEqual, leaderboard.DefaultTopN)
		So(b.Self, ShouldNotBeNil)
		So(b.Self.Rank, ShouldEqual, 30)
	})
}

func TestRequesterIdentityIsUIDOnly(t *testing.T) {
	Convey("Given the requester's uid bound under two platform accounts", t, func() {
		reader := &fakeReader{records: []model.ChallengeRecord{
			rec("X", "shared", 800),
			rec("A", "u1", 500),
			rec("B", "shared", 50),
		}}
		bindings := []model.Binding{
			{AccountID: "X", ExternalUIDs: []string{"shared"}},
			{AccountID: "A", ExternalUIDs: []string{"u1"}},
			{AccountID: "B", ExternalUIDs: []string{"shared"}},
		}

		Convey("When B asks with that uid", func() {
			b := newAggregator(reader).Build(context.Background(), leaderboard.Request{
				Bindings: bindings, ChallengeID: 12, RequesterAccount: "B", RequesterUID: "shared", TopN: 1,
			})

			Convey("Then the first row with the uid is the requester, whatever its account", func() {
				So(b.RequesterRank, ShouldEqual, 1)
				So(b.Rows[0].AccountID, ShouldEqual, "X")
				So(b.Rows[0].Highlight, ShouldBeTrue)
				So(b.Self, ShouldBeNil)
			})
		})
	})

	Convey("Given a requester with several uids", t, func() {
		reader := &fakeReader{records: []model.ChallengeRecord{
			rec("A", "a1", 10),
			rec("B", "b1", 900),
			rec("A", "a2", 20),
		}}
		bindings := []model.Binding{
			{AccountID: "A", ExternalUIDs: []string{"a1", "a2"}},
			{AccountID: "B", ExternalUIDs: []string{"b1"}},
		}
		b := newAggregator(reader).Build(context.Background(), leaderboard.Request{
			Bindings: bindings, RequesterAccount: "A", RequesterUID: "a1", TopN: 1,
		})

		Convey("Then only the supplied uid is surfaced and uids are not merged", func() {
			So(b.Stats.Total, ShouldEqual, 3)
			So(b.Self.ExternalUID, ShouldEqual, "a1")
			So(b.Self.Rank, ShouldEqual, 3)
		})
	})
}

func TestMalformedComposition(t *testing.T) {
	Convey("Given one record with an unreadable composition", t, func() {
		good := rec("A", "u1", 100)
		good.Halves = datatypes.JSON(`[{"score":100,"roleList":[{"roleId":1102},{"roleId":1203}]}]`)
		bad := rec("B", "u2", 200)
		bad.Halves = datatypes.JSON(`{oops`)
		reader := &fakeReader{records: []model.ChallengeRecord{good, bad}}

		b := newAggregator(reader).Build(context.Background(), leaderboard.Request{
			Bindings: []model.Binding{
				{AccountID: "A", ExternalUIDs: []string{"u1"}},
				{AccountID: "B", ExternalUIDs: []string{"u2"}},
			},
		})

		Convey("Then the entry is kept with an empty composition", func() {
			So(len(b.Rows), ShouldEqual, 2)
			So(b.Rows[0].ExternalUID, ShouldEqual, "u2")
			So(b.Rows[0].Halves, ShouldBeEmpty)
			So(len(b.Rows[1].Halves), ShouldEqual, 1)
			So(b.IconIDs(), ShouldResemble, []string{"1102", "1203"})
		})
	})
}

func TestBuildGlobal(t *testing.T) {
	Convey("Given the same uid under two accounts", t, func() {
		reader := &fakeReader{records: []model.ChallengeRecord{
			rec("A", "u1", 100),
			rec("B", "u1", 300),
			rec("B", "u2", 200),
		}}
		b := newAggregator(reader).BuildGlobal(context.Background(), 12, "u2", 5)

		Convey("Then each uid appears once with its best score", func() {
			So(len(b.Rows), ShouldEqual, 2)
			So(b.Rows[0].ExternalUID, ShouldEqual, "u1")
			So(b.Rows[0].Score, ShouldEqual, 300)
			So(b.RequesterRank, ShouldEqual, 2)
			So(b.Rows[1].Highlight, ShouldBeTrue)
		})
	})
}
