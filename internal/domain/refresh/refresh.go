// Package refresh re-fetches challenge data for every known account.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/slashboard/internal/adapters/upstream"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// DefaultConcurrency caps simultaneous upstream calls.
const DefaultConcurrency = 5

// Status is the outcome class of one account.
type Status int

const (
	Succeeded Status = iota
	NoData
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case NoData:
		return "no_data"
	default:
		return "failed"
	}
}

// Outcome is the tagged result of refreshing one account.
type Outcome struct {
	Account model.Account
	Status  Status
	Stored  int
	Err     error
}

// Report aggregates outcomes.
type Report struct {
	Succeeded int `json:"succeeded"`
	NoData    int `json:"no_data"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Tally folds outcomes into a report.
func Tally(outcomes []Outcome) Report {
	r := Report{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case Succeeded:
			r.Succeeded++
		case NoData:
			r.NoData++
		default:
			r.Failed++
		}
	}
	return r
}

// Task refreshes a single account.
type Task func(ctx context.Context, acct model.Account) Outcome

// Run executes task for every account with at most limit running at once.
// A failing or panicking task never cancels its siblings. Outcomes are
// returned in account order.
func Run(ctx context.Context, accounts []model.Account, task Task, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	outcomes := make([]Outcome, len(accounts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, acct := range accounts {
		i, acct := i, acct
		g.Go(func() error {
			outcomes[i] = safeRun(ctx, acct, task)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func safeRun(ctx context.Context, acct model.Account, task Task) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Account: acct, Status: Failed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome{Account: acct, Status: Failed, Err: err}
	}
	out = task(ctx, acct)
	out.Account = acct
	return out
}

// Upserter stores a submission.
type Upserter interface {
	Upsert(ctx context.Context, sub model.Submission) (model.ChallengeRecord, error)
}

// Refresher pulls every account's challenge results and stores them.
type Refresher struct {
	client      upstream.Client
	store       Upserter
	challengeID int
	limit       int
	logger      logger.Logger
}

// New creates a refresher.
func New(client upstream.Client, store Upserter, opts ...Option) *Refresher {
	r := &Refresher{
		client:      client,
		store:       store,
		challengeID: 12,
		limit:       DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("refresh")
	}
	return r
}

// Refresh processes every account and reports the aggregate outcome.
func (r *Refresher) Refresh(ctx context.Context, accounts []model.Account) Report {
	start := time.Now()
	outcomes := Run(ctx, accounts, r.refreshOne, r.limit)
	for _, o := range outcomes {
		metrics.RecordRefreshOutcome(o.Status.String())
		if o.Status == Failed {
			r.logger.Warn(ctx, "account refresh failed",
				logger.String("uid", o.Account.ExternalUID),
				logger.Error(o.Err),
			)
		}
	}
	report := Tally(outcomes)
	metrics.RecordRefreshDuration(time.Since(start))
	r.logger.Info(ctx, "refresh finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("noData", report.NoData),
		logger.Int("failed", report.Failed),
		logger.Int("total", report.Total),
	)
	return report
}

func (r *Refresher) refreshOne(ctx context.Context, acct model.Account) Outcome {
	profile, challenges, err := r.client.FetchChallenges(ctx, acct)
	switch {
	case errors.Is(err, upstream.ErrNoData):
		return Outcome{Status: NoData}
	case err != nil:
		return Outcome{Status: Failed, Err: err}
	}

	tracked := upstream.Only(challenges, r.challengeID)
	if len(tracked) == 0 {
		return Outcome{Status: Succeeded}
	}
	details, err := r.client.RoleDetails(ctx, acct)
	if err != nil {
		r.logger.Debug(ctx, "role details unavailable",
			logger.String("uid", acct.ExternalUID),
			logger.Error(err),
		)
	}

	stored := 0
	for _, c := range tracked {
		c.Halves = upstream.Enrich(c.Halves, details)
		sub := c.Submission(acct, profile).Normalized()
		if err := sub.Validate(); err != nil {
			return Outcome{Status: Failed, Stored: stored, Err: err}
		}
		if _, err := r.store.Upsert(ctx, sub); err != nil {
			return Outcome{Status: Failed, Stored: stored, Err: err}
		}
		stored++
	}
	return Outcome{Status: Succeeded, Stored: stored}
}
