package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/slashboard/internal/adapters/upstream"
	"github.com/okian/slashboard/internal/domain/model"
)

const slashPayload = `{
	"isUnlock": true,
	"difficultyList": [
		{"challengeList": [
			{"challengeId": 11, "challengeName": "Depth 11", "rank": "s", "score": 100},
			{"challengeId": 12, "challengeName": "Depth 12", "rank": "SSS", "score": 41000,
			 "halfList": [{"score": 21000, "buffName": "tide", "roleList": [{"roleId": 1203, "level": 90, "chain": 2}]}]}
		]}
	]
}`

func gameAPI(t *testing.T, slash func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/aki/roleBox/akiBox/baseData", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("token") == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]string{"name": "Rover-" + r.FormValue("roleId")},
		})
	})
	mux.HandleFunc("/aki/roleBox/akiBox/roleData", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"roleList":[
			{"roleId":1203,"roleName":"Encore","starLevel":5,"level":90,"chainUnlockNum":2},
			{"roleId":0,"roleName":"ghost"}
		]}}`)
	})
	mux.HandleFunc("/aki/roleBox/akiBox/slashDetail", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("token") == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		slash(w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient(t *testing.T) {
	acct := model.Account{AccountID: "A", ExternalUID: "100200300", Token: "tok"}

	Convey("Given an unlocked account with inline data", t, func() {
		srv := gameAPI(t, func(w http.ResponseWriter) {
			fmt.Fprintf(w, `{"code":200,"data":%s}`, slashPayload)
		})
		c := upstream.NewHTTPClient(srv.URL, time.Second)

		p, challenges, err := c.FetchChallenges(context.Background(), acct)

		Convey("Then the profile and every challenge are returned", func() {
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "Rover-100200300")
			So(len(challenges), ShouldEqual, 2)
		})

		Convey("Then filtering keeps only the tracked challenge", func() {
			only := upstream.Only(challenges, 12)
			So(len(only), ShouldEqual, 1)
			sub := only[0].Submission(acct, p)
			So(sub.Score, ShouldEqual, 41000)
			So(sub.RankTier, ShouldEqual, "SSS")
			So(sub.Halves[0].Characters[0].ID, ShouldEqual, 1203)
			So(sub.Validate(), ShouldBeNil)
		})
	})

	Convey("Given an account roster", t, func() {
		srv := gameAPI(t, func(w http.ResponseWriter) {})
		details, err := upstream.NewHTTPClient(srv.URL, time.Second).RoleDetails(context.Background(), acct)
		So(err, ShouldBeNil)
		So(details, ShouldResemble, map[int]upstream.RoleDetail{
			1203: {ID: 1203, Name: "Encore", Rarity: 5, Level: 90, Chain: 2},
		})
	})

	Convey("Given data delivered as an encoded string", t, func() {
		quoted, _ := json.Marshal(slashPayload)
		srv := gameAPI(t, func(w http.ResponseWriter) {
			fmt.Fprintf(w, `{"code":200,"data":%s}`, quoted)
		})
		_, challenges, err := upstream.NewHTTPClient(srv.URL, time.Second).FetchChallenges(context.Background(), acct)
		So(err, ShouldBeNil)
		So(len(challenges), ShouldEqual, 2)
	})

	Convey("Given a locked account", t, func() {
		srv := gameAPI(t, func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"code":200,"data":{"isUnlock":false}}`)
		})
		_, _, err := upstream.NewHTTPClient(srv.URL, time.Second).FetchChallenges(context.Background(), acct)
		So(errors.Is(err, upstream.ErrNoData), ShouldBeTrue)
	})

	Convey("Given an error code", t, func() {
		srv := gameAPI(t, func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"code":10902,"msg":"busy"}`)
		})
		_, _, err := upstream.NewHTTPClient(srv.URL, time.Second).FetchChallenges(context.Background(), acct)
		So(errors.Is(err, upstream.ErrUpstream), ShouldBeTrue)
	})

	Convey("Given a rejected credential", t, func() {
		srv := gameAPI(t, func(w http.ResponseWriter) {})
		bad := acct
		bad.Token = "bad"
		_, _, err := upstream.NewHTTPClient(srv.URL, time.Second).FetchChallenges(context.Background(), bad)
		So(errors.Is(err, upstream.ErrUnauthorized), ShouldBeTrue)
	})
}

func TestSimulatedClient(t *testing.T) {
	Convey("Given a fast simulated client", t, func() {
		c := upstream.NewSimulatedClient(
			upstream.WithLatencyRange(time.Millisecond, 2*time.Millisecond),
			upstream.WithNoDataEvery(0),
		)
		acct := model.Account{AccountID: "A", ExternalUID: "123456789"}

		Convey("Then results are deterministic per uid", func() {
			p1, c1, err := c.FetchChallenges(context.Background(), acct)
			So(err, ShouldBeNil)
			p2, c2, err := c.FetchChallenges(context.Background(), acct)
			So(err, ShouldBeNil)
			So(p1, ShouldResemble, p2)
			So(c1, ShouldResemble, c2)
		})

		Convey("Then results are well-formed submissions", func() {
			p, cs, err := c.FetchChallenges(context.Background(), acct)
			So(err, ShouldBeNil)
			So(len(cs), ShouldEqual, 1)
			sub := cs[0].Submission(acct, p)
			So(sub.Validate(), ShouldBeNil)
			So(sub.ChallengeID, ShouldEqual, 12)
			So(len(sub.Halves), ShouldEqual, model.MaxHalves)
			So(sub.Score, ShouldEqual, int64(sub.Halves[0].Score+sub.Halves[1].Score))
		})

		Convey("Then every reported character has roster details", func() {
			_, cs, err := c.FetchChallenges(context.Background(), acct)
			So(err, ShouldBeNil)
			details, err := c.RoleDetails(context.Background(), acct)
			So(err, ShouldBeNil)
			for _, h := range upstream.Enrich(cs[0].Halves, details) {
				for _, ch := range h.Characters {
					So(ch.Name, ShouldNotBeEmpty)
					So(ch.Level, ShouldEqual, 90)
				}
			}
		})

		Convey("Then a cancelled context stops the call", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			slow := upstream.NewSimulatedClient(upstream.WithLatencyRange(time.Second, 2*time.Second))
			_, _, err := slow.FetchChallenges(ctx, acct)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given every uid marked as locked", t, func() {
		c := upstream.NewSimulatedClient(
			upstream.WithLatencyRange(time.Millisecond, 2*time.Millisecond),
			upstream.WithNoDataEvery(1),
		)
		_, _, err := c.FetchChallenges(context.Background(), model.Account{ExternalUID: "1"})
		So(errors.Is(err, upstream.ErrNoData), ShouldBeTrue)
	})
}

func TestEnrich(t *testing.T) {
	Convey("Given slots with and without roster details", t, func() {
		halves := []model.CompositionHalf{{
			Score: 10,
			Characters: []model.CharacterRef{
				{ID: 0, Name: "empty"},
				{ID: 1203, Level: 70, IconURL: "i"},
				{ID: 9999, Level: 50, Chain: 1},
			},
		}}
		out := upstream.Enrich(halves, map[int]upstream.RoleDetail{
			1203: {ID: 1203, Name: "Encore", Rarity: 5, Level: 90},
		})

		So(len(out[0].Characters), ShouldEqual, 2)
		So(out[0].Characters[0], ShouldResemble, model.CharacterRef{ID: 1203, Name: "Encore", Rarity: 5, Level: 90, IconURL: "i"})
		So(out[0].Characters[1], ShouldResemble, model.CharacterRef{ID: 9999, Level: 50, Chain: 1})
		So(len(halves[0].Characters), ShouldEqual, 3)
		So(out[0].Score, ShouldEqual, 10)
	})
}
