package loadgen

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/okian/slashboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGeneratePlayers(t *testing.T) {
	Convey("Given a generator config", t, func() {
		cfg := &Config{NumPlayers: 50, RunsPerPlayer: 3, ChallengeID: 12}
		stats := &Stats{}

		Convey("When players are generated", func() {
			players, err := generatePlayers(context.Background(), cfg, stats)
			So(err, ShouldBeNil)
			So(players, ShouldHaveLength, 50)
			So(stats.PlayersGenerated, ShouldEqual, 50)

			Convey("Then account ids are uuids and game uids are unique nine-digit numbers", func() {
				uids := map[string]struct{}{}
				for _, p := range players {
					_, err := uuid.Parse(p.AccountID)
					So(err, ShouldBeNil)
					So(p.ExternalUID, ShouldHaveLength, 9)
					uids[p.ExternalUID] = struct{}{}
				}
				So(uids, ShouldHaveLength, 50)
			})

			Convey("Then every run is a valid submission for the player", func() {
				for _, p := range players {
					So(p.Runs, ShouldHaveLength, 3)
					for _, r := range p.Runs {
						So(r.Validate(), ShouldBeNil)
						So(r.AccountID, ShouldEqual, p.AccountID)
						So(r.ExternalUID, ShouldEqual, p.ExternalUID)
						So(r.ChallengeID, ShouldEqual, 12)
						So(r.Halves, ShouldHaveLength, halfCount)
						So(r.Halves[0].Characters, ShouldHaveLength, charactersPerHalf)
					}
					So(p.FinalScore(), ShouldEqual, p.Runs[2].Score)
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := generatePlayers(ctx, cfg, stats)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestGenerateVariedScore(t *testing.T) {
	Convey("Scores stay within the widest band", t, func() {
		for i := 0; i < 1000; i++ {
			s := generateVariedScore()
			So(s, ShouldBeGreaterThanOrEqualTo, 0)
			So(s, ShouldBeLessThanOrEqualTo, elitePerformerMin+elitePerformerRng)
		}
	})
}
