package upstream

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/slashboard/internal/domain/model"
)

// Simulated client configuration defaults.
const (
	defaultMinLatency  = 80 * time.Millisecond
	defaultMaxLatency  = 150 * time.Millisecond
	defaultRandomSeed  = 42
	defaultChallengeID = 12
	maxSimulatedScore  = 60000
)

var simulatedRoster = []model.CharacterRef{
	{ID: 1102, Name: "Sanhua", Rarity: 4},
	{ID: 1203, Name: "Encore", Rarity: 5},
	{ID: 1205, Name: "Changli", Rarity: 5},
	{ID: 1302, Name: "Yinlin", Rarity: 5},
	{ID: 1404, Name: "Jiyan", Rarity: 5},
	{ID: 1503, Name: "Verina", Rarity: 5},
	{ID: 1506, Name: "Phoebe", Rarity: 5},
	{ID: 1603, Name: "Camellya", Rarity: 5},
}

// SimulatedOption configures a SimulatedClient.
type SimulatedOption func(*SimulatedClient)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) SimulatedOption {
	return func(s *SimulatedClient) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithNoDataEvery marks every n-th uid (by hash) as locked. Zero disables it.
func WithNoDataEvery(n int) SimulatedOption {
	return func(s *SimulatedClient) {
		if n >= 0 {
			s.noDataEvery = n
		}
	}
}

// WithSimulatedChallenge sets the challenge id the client reports.
func WithSimulatedChallenge(id int, name string) SimulatedOption {
	return func(s *SimulatedClient) {
		if id > 0 {
			s.challengeID = id
		}
		if name != "" {
			s.challengeName = name
		}
	}
}

// SimulatedClient fabricates plausible challenge results without a network.
// Scores depend only on the uid, so repeated fetches agree.
type SimulatedClient struct {
	minLatency    time.Duration
	maxLatency    time.Duration
	noDataEvery   int
	challengeID   int
	challengeName string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedClient creates a simulated client with configuration options.
func NewSimulatedClient(opts ...SimulatedOption) *SimulatedClient {
	s := &SimulatedClient{
		minLatency:    defaultMinLatency,
		maxLatency:    defaultMaxLatency,
		noDataEvery:   7,
		challengeID:   defaultChallengeID,
		challengeName: "Depths of Illusion 12",
		rng:           rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible testing
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedClient) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
}

func (s *SimulatedClient) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(s.latency()):
		return nil
	}
}

func uidSeed(uid string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(uid))
	return h.Sum64()
}

// FetchChallenges reports slots by role id only, like the real endpoint.
func (s *SimulatedClient) FetchChallenges(ctx context.Context, acct model.Account) (Profile, []Challenge, error) {
	if err := s.wait(ctx); err != nil {
		return Profile{}, nil, err
	}
	if acct.ExternalUID == "" {
		return Profile{}, nil, fmt.Errorf("%w: empty uid", ErrUpstream)
	}

	seed := uidSeed(acct.ExternalUID)
	p := Profile{UID: acct.ExternalUID, Name: fmt.Sprintf("Rover-%04d", seed%10000)}
	if s.noDataEvery > 0 && seed%uint64(s.noDataEvery) == 0 {
		return p, nil, ErrNoData
	}

	r := rand.New(rand.NewSource(int64(seed))) //nolint:gosec // per-uid deterministic fixtures
	halves := make([]model.CompositionHalf, model.MaxHalves)
	var total int64
	for i := range halves {
		score := r.Intn(maxSimulatedScore / model.MaxHalves)
		total += int64(score)
		chars := make([]model.CharacterRef, model.MaxCharactersInHalf)
		for j, k := range r.Perm(len(simulatedRoster))[:model.MaxCharactersInHalf] {
			chars[j] = model.CharacterRef{ID: simulatedRoster[k].ID}
		}
		halves[i] = model.CompositionHalf{
			Score:       score,
			BuffName:    fmt.Sprintf("Buff %d", r.Intn(12)+1),
			BuffQuality: r.Intn(3) + 3,
			Characters:  chars,
		}
	}

	tiers := []string{"B", "A", "S", "SS", "SSS"}
	return p, []Challenge{{
		ChallengeID:   s.challengeID,
		ChallengeName: s.challengeName,
		RankTier:      tiers[int(total)*len(tiers)/maxSimulatedScore],
		Score:         total,
		Halves:        halves,
	}}, nil
}

// RoleDetails returns the whole simulated roster at level 90 with a per-uid
// chain count.
func (s *SimulatedClient) RoleDetails(ctx context.Context, acct model.Account) (map[int]RoleDetail, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if acct.ExternalUID == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrUpstream)
	}
	r := rand.New(rand.NewSource(int64(uidSeed(acct.ExternalUID)) + 1)) //nolint:gosec // per-uid deterministic fixtures
	out := make(map[int]RoleDetail, len(simulatedRoster))
	for _, c := range simulatedRoster {
		out[c.ID] = RoleDetail{ID: c.ID, Name: c.Name, Rarity: c.Rarity, Level: 90, Chain: r.Intn(7)}
	}
	return out, nil
}
