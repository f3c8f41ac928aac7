// Package service wires the record store, retention, aggregation, asset
// resolution and rendering into the operations exposed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/slashboard/internal/adapters/assets"
	"github.com/okian/slashboard/internal/adapters/imagecache"
	"github.com/okian/slashboard/internal/adapters/marker"
	"github.com/okian/slashboard/internal/adapters/mq/queue"
	"github.com/okian/slashboard/internal/adapters/mq/worker"
	"github.com/okian/slashboard/internal/adapters/render"
	"github.com/okian/slashboard/internal/adapters/repository"
	"github.com/okian/slashboard/internal/adapters/upstream"
	"github.com/okian/slashboard/internal/config"
	"github.com/okian/slashboard/internal/domain/leaderboard"
	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/internal/domain/refresh"
	"github.com/okian/slashboard/internal/domain/retention"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// Format selects how a leaderboard is returned.
type Format string

// Supported leaderboard formats.
const (
	FormatPNG  Format = "png"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat maps a query value to a Format. Empty selects PNG.
func ParseFormat(v string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FormatPNG, nil
	case FormatPNG, FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, v)
	}
}

// Query identifies a board and its requester.
type Query struct {
	// Scope selects the bindings of a group. Ignored by GlobalLeaderboard.
	Scope string
	// Account is the requesting platform account.
	Account string
	// UID is the requester's game account. When empty the account's primary
	// game account is used.
	UID    string
	Limit  int
	Format Format
}

// Result is a built board plus its encoded form. Message is set instead of
// Body when the board is empty.
type Result struct {
	Board       leaderboard.Board
	Body        []byte
	ContentType string
	Message     string
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	now    func() time.Time
	logger logger.Logger

	// Replaceable collaborators
	source   assets.Source
	client   upstream.Client
	renderer render.Renderer

	// Components built by Start
	store      *repository.GormStore
	marker     marker.Store
	cycler     *retention.Cycler
	aggregator *leaderboard.Aggregator
	cache      imagecache.Cache
	resolver   *assets.Resolver
	text       render.Renderer
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	refresher  *refresh.Refresher

	started bool
	cancel  context.CancelFunc
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the ingest workers. A retention check runs
// once before the service accepts requests.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.logger.Info(ctx, "starting leaderboard service...")

	db, err := repository.Open(ctx, s.cfg.DBDriver, s.cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = repository.NewGormStore(db)

	if s.marker, err = s.openMarker(ctx); err != nil {
		_ = s.store.Close()
		return err
	}
	origin, err := s.cfg.Origin()
	if err != nil {
		_ = s.store.Close()
		return err
	}
	s.cycler = retention.New(s.store, s.marker,
		retention.WithOrigin(origin),
		retention.WithLengthDays(s.cfg.RetentionDays),
		retention.WithClock(s.now),
	)

	s.aggregator = leaderboard.New(s.store)

	if s.source == nil {
		s.source = assets.NewHTTPSource(s.cfg.AvatarURL, s.cfg.IconURL, s.cfg.AssetTimeout())
	}
	s.cache = imagecache.New(
		imagecache.WithCapacity(s.cfg.AssetCacheSize),
		imagecache.WithTTL(s.cfg.AssetCacheTTL()),
	)
	s.resolver = assets.NewResolver(s.source,
		assets.WithCache(s.cache),
		assets.WithDefaultAvatar(s.cfg.DefaultAvatarChar),
		assets.WithFetchTimeout(2*s.cfg.AssetTimeout()),
	)
	if s.renderer == nil {
		s.renderer = render.NewPNGRenderer()
	}
	s.text = render.NewTextRenderer()

	if s.client == nil {
		s.client = s.newUpstream()
	}
	s.refresher = refresh.New(s.client, s.store,
		refresh.WithConcurrency(s.cfg.RefreshConcurrency),
		refresh.WithChallengeID(s.cfg.ChallengeID),
	)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, s.store)

	// Workers outlive the start context; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.cycler.Check(ctx)

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("driver", s.cfg.DBDriver),
		logger.String("marker", s.cfg.MarkerBackend),
		logger.String("upstream", s.cfg.UpstreamMode),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int64("epoch", s.cycler.Current()),
	)
	return nil
}

func (s *Service) openMarker(ctx context.Context) (marker.Store, error) {
	if s.cfg.MarkerBackend == "redis" {
		m, err := marker.NewRedis(ctx, s.cfg.RedisAddr, s.cfg.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("open retention marker: %w", err)
		}
		return m, nil
	}
	return marker.NewFile(s.cfg.MarkerPath), nil
}

func (s *Service) newUpstream() upstream.Client {
	if s.cfg.UpstreamMode == "http" {
		return upstream.NewHTTPClient(s.cfg.UpstreamURL, s.cfg.UpstreamTimeout())
	}
	return upstream.NewSimulatedClient(
		upstream.WithLatencyRange(
			time.Duration(s.cfg.UpstreamLatencyMinMS)*time.Millisecond,
			time.Duration(s.cfg.UpstreamLatencyMaxMS)*time.Millisecond,
		),
		upstream.WithSimulatedChallenge(s.cfg.ChallengeID, ""),
	)
}

// Stop drains the submission queue and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping leaderboard service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	s.cancel()

	if closer, ok := s.marker.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Bind registers a game account for a platform account in a scope.
func (s *Service) Bind(ctx context.Context, row model.BindingRow) error {
	if err := s.running(); err != nil {
		return err
	}
	row.Scope = strings.TrimSpace(row.Scope)
	row.AccountID = strings.TrimSpace(row.AccountID)
	row.ExternalUID = strings.TrimSpace(row.ExternalUID)
	if row.Scope == "" || row.AccountID == "" || row.ExternalUID == "" {
		return fmt.Errorf("%w: scope, account_id and external_uid are required", ErrInvalidBinding)
	}
	return s.store.Bind(ctx, row)
}

// Submit validates a submission and queues it for storage. It returns
// queue.ErrFull when the queue is saturated.
func (s *Service) Submit(ctx context.Context, sub model.Submission) error {
	if err := s.running(); err != nil {
		return err
	}
	metrics.RecordSubmissionReceived()

	sub = sub.Normalized()
	if err := sub.Validate(); err != nil {
		metrics.RecordSubmissionRejected("invalid")
		return err
	}
	if err := s.queue.Enqueue(ctx, sub); err != nil {
		metrics.RecordSubmissionRejected("queue")
		s.logger.Warn(ctx, "submission not queued",
			logger.String("key", sub.Key()),
			logger.Error(err),
		)
		return err
	}
	s.logger.Debug(ctx, "submission queued", logger.String("key", sub.Key()))
	return nil
}

// Leaderboard builds the board of a scope.
func (s *Service) Leaderboard(ctx context.Context, q Query) (Result, error) {
	if err := s.running(); err != nil {
		return Result{}, err
	}
	s.cycler.Check(ctx)

	bindings, err := s.store.Bindings(ctx, q.Scope)
	if err != nil {
		return Result{}, err
	}
	board := s.aggregator.Build(ctx, leaderboard.Request{
		Bindings:         bindings,
		ChallengeID:      s.cfg.ChallengeID,
		RequesterAccount: q.Account,
		RequesterUID:     s.requesterUID(ctx, q),
		TopN:             s.limit(q.Limit),
	})

	subtitle := fmt.Sprintf("scope %s, cycle %d", q.Scope, s.cycler.Current())
	return s.present(ctx, q, board, render.EmptyMessage(q.Scope), subtitle)
}

// GlobalLeaderboard ranks the best record of every stored game account.
func (s *Service) GlobalLeaderboard(ctx context.Context, q Query) (Result, error) {
	if err := s.running(); err != nil {
		return Result{}, err
	}
	s.cycler.Check(ctx)

	board := s.aggregator.BuildGlobal(ctx, s.cfg.ChallengeID, s.requesterUID(ctx, q), s.limit(q.Limit))

	subtitle := fmt.Sprintf("all players, cycle %d", s.cycler.Current())
	return s.present(ctx, q, board, render.EmptyMessage(""), subtitle)
}

// requesterUID falls back to the account's primary game account.
func (s *Service) requesterUID(ctx context.Context, q Query) string {
	if uid := strings.TrimSpace(q.UID); uid != "" || q.Account == "" {
		return uid
	}
	uid, err := s.store.PrimaryUID(ctx, q.Account)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn(ctx, "primary uid lookup failed",
				logger.String("account", q.Account),
				logger.Error(err),
			)
		}
		return ""
	}
	return uid
}

func (s *Service) limit(n int) int {
	switch {
	case n <= 0:
		return s.cfg.TopN
	case n > s.cfg.MaxLeaderboardLimit:
		return s.cfg.MaxLeaderboardLimit
	default:
		return n
	}
}

// present encodes a board in the requested format. A failed image render
// falls back to the text table.
func (s *Service) present(ctx context.Context, q Query, board leaderboard.Board, empty, subtitle string) (Result, error) {
	if board.Empty() {
		return Result{Board: board, Message: empty}, nil
	}
	res := Result{Board: board}
	sheet := render.Sheet{
		Title:    fmt.Sprintf("Challenge %d leaderboard", s.cfg.ChallengeID),
		Subtitle: subtitle,
		Rows:     board.Drawn(),
		Stats:    board.Stats,
	}

	switch q.Format {
	case FormatJSON:
		return res, nil
	case FormatText:
		return s.renderText(ctx, res, sheet)
	}

	sheet.Assets = s.resolver.Resolve(ctx, board.AvatarIDs(), board.IconIDs())
	out, err := s.renderer.Render(ctx, sheet)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		s.logger.Warn(ctx, "image render failed, sending text", logger.Error(err))
		return s.renderText(ctx, res, sheet)
	}
	res.Body = out
	res.ContentType = "image/png"
	return res, nil
}

func (s *Service) renderText(ctx context.Context, res Result, sheet render.Sheet) (Result, error) {
	out, err := s.text.Render(ctx, sheet)
	if err != nil {
		return Result{}, err
	}
	res.Body = out
	res.ContentType = "text/plain; charset=utf-8"
	return res, nil
}

// Purge deletes every record regardless of the retention cycle.
func (s *Service) Purge(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	if err := s.store.PurgeAll(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "records purged on request")
	return nil
}

// Refresh fetches fresh results for every bound game account.
func (s *Service) Refresh(ctx context.Context) (refresh.Report, error) {
	if err := s.running(); err != nil {
		return refresh.Report{}, err
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return refresh.Report{}, err
	}
	return s.refresher.Refresh(ctx, accounts), nil
}

// Stats is a point-in-time view of the service for monitoring. Fields past
// QueueSize are zero until the service has started.
type Stats struct {
	Started        bool  `json:"started"`
	ChallengeID    int   `json:"challengeId"`
	QueueSize      int   `json:"queueSize"`
	WorkerCount    int   `json:"workerCount"`
	QueueLength    int   `json:"queueLength"`
	Processed      int64 `json:"processed"`
	Records        int   `json:"records"`
	AssetCacheSize int64 `json:"assetCacheSize"`
	RetentionEpoch int64 `json:"retentionEpoch"`
}

// GetStats returns service statistics and refreshes the queue and worker
// gauges.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:     s.started,
		ChallengeID: s.cfg.ChallengeID,
		QueueSize:   s.cfg.QueueSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats.WorkerCount = s.pool.Size()
	stats.QueueLength = s.queue.Len(ctx)
	stats.Processed = s.pool.Processed()
	stats.Records = s.store.Count(ctx)
	stats.AssetCacheSize = s.cache.Size()
	stats.RetentionEpoch = s.cycler.Current()

	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateWorkerCount(stats.WorkerCount)
	return stats
}
