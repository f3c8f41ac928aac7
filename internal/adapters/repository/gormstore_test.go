package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
)

var dbSeq atomic.Int64

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// newTestStore opens a private in-memory sqlite database.
func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := NewGormStore(db, WithLogger(logger.Nop()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sub(account, uid string, score int64) model.Submission {
	return model.Submission{
		AccountID:     account,
		ExternalUID:   uid,
		Name:          "player-" + uid,
		ChallengeID:   12,
		ChallengeName: "depth 12",
		RankTier:      "S",
		Score:         score,
	}
}

func TestGormStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Upsert(ctx, sub("A", "u1", 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := sub("A", "u1", 40)
	last.Name = "renamed"
	last.RankTier = "b"
	last.Halves = []model.CompositionHalf{{Score: 40, BuffName: "tide", Characters: []model.CharacterRef{{ID: 1203}}}}
	second, err := s.Upsert(ctx, last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected the same row to be updated, got ids %d and %d", first.ID, second.ID)
	}
	if second.Score != 40 || second.Name != "renamed" || second.RankTier != "b" {
		t.Errorf("expected last submission fields, got %+v", second)
	}
	halves, err := model.ParseHalves(second.Halves)
	if err != nil || len(halves) != 1 || halves[0].Characters[0].ID != 1203 {
		t.Errorf("expected composition of the last submission, got %v (%v)", halves, err)
	}
	if n := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestGormStore_UpsertDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	other := sub("A", "u1", 10)
	other.ChallengeID = 11
	for _, in := range []model.Submission{sub("A", "u1", 10), sub("B", "u1", 10), other} {
		if _, err := s.Upsert(ctx, in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if n := s.Count(ctx); n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}

func TestGormStore_ConcurrentUpsertSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			if _, err := s.Upsert(ctx, sub("A", "u1", score)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	if n := s.Count(ctx); n != 1 {
		t.Errorf("expected a single row for one key, got %d", n)
	}
}

func TestGormStore_BatchFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const players = 300
	pairs := make([]model.Pair, 0, players)
	for i := 0; i < players; i++ {
		uid := fmt.Sprintf("u%03d", i)
		if _, err := s.Upsert(ctx, sub("acct", uid, int64(i))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pairs = append(pairs, model.Pair{AccountID: "acct", ExternalUID: uid})
	}
	// Rows outside the requested set
	if _, err := s.Upsert(ctx, sub("stranger", "u000", 999)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	otherChallenge := sub("acct", "u001", 5)
	otherChallenge.ChallengeID = 3
	if _, err := s.Upsert(ctx, otherChallenge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := s.BatchFetch(ctx, pairs, 12)
	if len(rows) != players {
		t.Fatalf("expected %d rows, got %d", players, len(rows))
	}
	requested := make(map[model.Pair]bool, len(pairs))
	for _, p := range pairs {
		requested[p] = true
	}
	for i, r := range rows {
		if !requested[r.Pair()] || r.ChallengeID != 12 {
			t.Errorf("unexpected row %+v", r)
		}
		if i > 0 && rows[i-1].ID > r.ID {
			t.Errorf("expected insertion order, got id %d before %d", rows[i-1].ID, r.ID)
		}
	}

	if got := s.BatchFetch(ctx, nil, 12); len(got) != 0 {
		t.Errorf("expected no rows for no pairs, got %d", len(got))
	}
	if got := s.BatchFetch(ctx, []model.Pair{{AccountID: "nobody", ExternalUID: "x"}}, 12); len(got) != 0 {
		t.Errorf("expected no rows for unknown pair, got %d", len(got))
	}
}

func TestGormStore_BatchFetchLargePairSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const total = 20000
	pairs := make([]model.Pair, total)
	for i := range pairs {
		pairs[i] = model.Pair{AccountID: "acct", ExternalUID: fmt.Sprintf("u%05d", i)}
	}
	// Stored out of pair order so chunk order differs from insertion order.
	stored := []int{total - 1, total / 2, 0}
	for _, i := range stored {
		if _, err := s.Upsert(ctx, sub("acct", pairs[i].ExternalUID, int64(i))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// The same pair requested again in a later chunk.
	pairs = append(pairs, pairs[0])

	rows := s.BatchFetch(ctx, pairs, 12)
	if len(rows) != len(stored) {
		t.Fatalf("expected %d rows, got %d", len(stored), len(rows))
	}
	for i, r := range rows {
		if want := pairs[stored[i]].ExternalUID; r.ExternalUID != want {
			t.Errorf("row %d: expected %s, got %s", i, want, r.ExternalUID)
		}
		if i > 0 && rows[i-1].ID >= r.ID {
			t.Errorf("expected insertion order, got id %d before %d", rows[i-1].ID, r.ID)
		}
	}
}

func TestGormStore_BatchFetchFailureIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Upsert(ctx, sub("A", "u1", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = s.Close()

	rows := s.BatchFetch(ctx, []model.Pair{{AccountID: "A", ExternalUID: "u1"}}, 12)
	if len(rows) != 0 {
		t.Errorf("expected empty result on failure, got %d rows", len(rows))
	}
	if n := s.Count(ctx); n != 0 {
		t.Errorf("expected count 0 on failure, got %d", n)
	}
}

func TestGormStore_TopPerUID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, in := range []model.Submission{
		sub("A", "u1", 100),
		sub("B", "u1", 300), // same game account bound by another platform account
		sub("B", "u2", 200),
	} {
		if _, err := s.Upsert(ctx, in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rows := s.TopPerUID(ctx, 12)
	if len(rows) != 2 {
		t.Fatalf("expected one row per uid, got %d", len(rows))
	}
	best := map[string]int64{}
	for _, r := range rows {
		best[r.ExternalUID] = r.Score
	}
	if best["u1"] != 300 || best["u2"] != 200 {
		t.Errorf("unexpected best scores %v", best)
	}
}

func TestGormStore_PurgeAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Upsert(ctx, sub("A", fmt.Sprint(i), 1)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.PurgeAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := s.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
	// Purging an empty store is fine
	if err := s.PurgeAll(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGormStore_Bindings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rows := []model.BindingRow{
		{Scope: "g1", AccountID: "A", ExternalUID: "u1"},
		{Scope: "g1", AccountID: "B", ExternalUID: "u2"},
		{Scope: "g1", AccountID: "B", ExternalUID: "u3", Token: "tok"},
		{Scope: "g2", AccountID: "C", ExternalUID: "u4"},
	}
	for _, r := range rows {
		if err := s.Bind(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Re-binding is an update, not a duplicate
	if err := s.Bind(ctx, rows[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Bindings(ctx, "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].AccountID != "A" || got[1].AccountID != "B" {
		t.Fatalf("unexpected bindings %+v", got)
	}
	if len(got[1].ExternalUIDs) != 2 || got[1].ExternalUIDs[0] != "u2" || got[1].ExternalUIDs[1] != "u3" {
		t.Errorf("unexpected uids %+v", got[1].ExternalUIDs)
	}

	empty, err := s.Bindings(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no bindings, got %v (%v)", empty, err)
	}

	accounts, err := s.Accounts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 4 {
		t.Errorf("expected 4 accounts, got %d", len(accounts))
	}
	for _, a := range accounts {
		if a.ExternalUID == "u3" && a.Token != "tok" {
			t.Errorf("expected token for u3, got %q", a.Token)
		}
	}
}

func TestGormStore_PrimaryUID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.PrimaryUID(ctx, "B"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_ = s.Bind(ctx, model.BindingRow{Scope: "g1", AccountID: "B", ExternalUID: "u2"})
	_ = s.Bind(ctx, model.BindingRow{Scope: "g1", AccountID: "B", ExternalUID: "u3"})

	uid, err := s.PrimaryUID(ctx, "B")
	if err != nil || uid != "u2" {
		t.Errorf("expected earliest binding u2, got %q (%v)", uid, err)
	}

	_ = s.Bind(ctx, model.BindingRow{Scope: "g1", AccountID: "B", ExternalUID: "u3", Primary: true})
	uid, err = s.PrimaryUID(ctx, "B")
	if err != nil || uid != "u3" {
		t.Errorf("expected primary u3, got %q (%v)", uid, err)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", ""); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("expected ErrUnsupportedDriver, got %v", err)
	}
}
