package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/slashboard/internal/domain/model"
	"github.com/okian/slashboard/pkg/logger"
	"github.com/okian/slashboard/pkg/metrics"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// recordKeyColumns is the natural key of challenge_records.
var recordKeyColumns = []clause.Column{{Name: "account_id"}, {Name: "external_uid"}, {Name: "challenge_id"}}

// recordMutableColumns are overwritten in place by an upsert.
var recordMutableColumns = []string{"name", "challenge_name", "rank_tier", "score", "half_list", "updated_at"}

// topPerUIDQuery keeps the best-scoring row of each game account.
const topPerUIDQuery = `
SELECT id, account_id, external_uid, challenge_id, name, challenge_name, rank_tier, score, half_list, created_at, updated_at
FROM (
	SELECT *, ROW_NUMBER() OVER (PARTITION BY external_uid ORDER BY score DESC, id ASC) AS row_num
	FROM challenge_records
	WHERE challenge_id = ?
) ranked
WHERE row_num = 1
ORDER BY id ASC`

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if dialector.Name() == DriverSQLite {
		// sqlite allows a single writer; serialize through one connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&model.ChallengeRecord{}, &model.BindingRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// ensureDir creates the parent directory of a file-backed sqlite database.
func ensureDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// GormStore implements Store and BindingStore on top of gorm.
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormStore wraps an opened database.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// Upsert stores the submission under its key, overwriting mutable fields of
// an existing row. The insert-or-update is a single statement so concurrent
// writers to one key never create a second row; the last writer wins.
func (s *GormStore) Upsert(ctx context.Context, sub model.Submission) (model.ChallengeRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency("upsert", sinceMs(start)) }()

	halves, err := model.EncodeHalves(sub.Halves)
	if err != nil {
		return model.ChallengeRecord{}, err
	}
	row := model.ChallengeRecord{
		AccountID:     sub.AccountID,
		ExternalUID:   sub.ExternalUID,
		ChallengeID:   sub.ChallengeID,
		Name:          sub.Name,
		ChallengeName: sub.ChallengeName,
		RankTier:      sub.RankTier,
		Score:         sub.Score,
		Halves:        halves,
	}

	var stored model.ChallengeRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   recordKeyColumns,
			DoUpdates: clause.AssignmentColumns(recordMutableColumns),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ? AND external_uid = ? AND challenge_id = ?",
			sub.AccountID, sub.ExternalUID, sub.ChallengeID).
			First(&stored).Error
	})
	if err != nil {
		metrics.RecordStoreError("upsert")
		return model.ChallengeRecord{}, fmt.Errorf("upsert %s: %w", sub.Key(), err)
	}
	metrics.RecordRecordUpserted()
	return stored, nil
}

// batchFetchChunk bounds the pairs per statement below the bind-variable
// limits of sqlite and postgres.
const batchFetchChunk = 500

// BatchFetch loads all records of the requested pairs in one read
// transaction, splitting the pairs into chunks of batchFetchChunk.
func (s *GormStore) BatchFetch(ctx context.Context, pairs []model.Pair, challengeID int) []model.ChallengeRecord {
	if len(pairs) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency("batch_fetch", sinceMs(start)) }()

	var rows []model.ChallengeRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for lo := 0; lo < len(pairs); lo += batchFetchChunk {
			hi := min(lo+batchFetchChunk, len(pairs))
			tuples := make([][]interface{}, 0, hi-lo)
			for _, p := range pairs[lo:hi] {
				tuples = append(tuples, []interface{}{p.AccountID, p.ExternalUID})
			}

			var chunk []model.ChallengeRecord
			if err := tx.Where("challenge_id = ?", challengeID).
				Where("(account_id, external_uid) IN ?", tuples).
				Order("id ASC").
				Find(&chunk).Error; err != nil {
				return err
			}
			rows = append(rows, chunk...)
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError("batch_fetch")
		s.logger.Error(ctx, "batch fetch failed",
			logger.Int("pairs", len(pairs)),
			logger.Int("challengeID", challengeID),
			logger.Error(err),
		)
		return nil
	}

	// Duplicate pairs may land in different chunks.
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	out := rows[:0]
	for i, r := range rows {
		if i > 0 && r.ID == rows[i-1].ID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// TopPerUID returns the best record of every game account for a challenge.
func (s *GormStore) TopPerUID(ctx context.Context, challengeID int) []model.ChallengeRecord {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency("top_per_uid", sinceMs(start)) }()

	var rows []model.ChallengeRecord
	if err := s.db.WithContext(ctx).Raw(topPerUIDQuery, challengeID).Scan(&rows).Error; err != nil {
		metrics.RecordStoreError("top_per_uid")
		s.logger.Error(ctx, "top per uid query failed",
			logger.Int("challengeID", challengeID),
			logger.Error(err),
		)
		return nil
	}
	return rows
}

// PurgeAll deletes every challenge record.
func (s *GormStore) PurgeAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.ChallengeRecord{}).Error
	if err != nil {
		metrics.RecordStoreError("purge")
		return fmt.Errorf("purge records: %w", err)
	}
	metrics.UpdateRecordsTotal(0)
	return nil
}

// Count returns the number of stored records, or 0 on failure.
func (s *GormStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.ChallengeRecord{}).Count(&n).Error; err != nil {
		metrics.RecordStoreError("count")
		s.logger.Warn(ctx, "count failed", logger.Error(err))
		return 0
	}
	metrics.UpdateRecordsTotal(int(n))
	return int(n)
}

// Bind registers a game account. Marking it primary demotes the account's
// other game accounts.
func (s *GormStore) Bind(ctx context.Context, row model.BindingRow) error {
	row.ID = 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.Primary {
			if err := tx.Model(&model.BindingRow{}).
				Where("account_id = ? AND external_uid <> ?", row.AccountID, row.ExternalUID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope"}, {Name: "account_id"}, {Name: "external_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_primary", "token", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		metrics.RecordStoreError("bind")
		return fmt.Errorf("bind %s/%s: %w", row.AccountID, row.ExternalUID, err)
	}
	return nil
}

// Bindings groups the scope's rows by account, keeping registration order.
func (s *GormStore) Bindings(ctx context.Context, scope string) ([]model.Binding, error) {
	var rows []model.BindingRow
	if err := s.db.WithContext(ctx).Where("scope = ?", scope).Order("id ASC").Find(&rows).Error; err != nil {
		metrics.RecordStoreError("bindings")
		return nil, fmt.Errorf("bindings for %q: %w", scope, err)
	}

	index := make(map[string]int)
	var out []model.Binding
	for _, r := range rows {
		i, ok := index[r.AccountID]
		if !ok {
			i = len(out)
			index[r.AccountID] = i
			out = append(out, model.Binding{AccountID: r.AccountID})
		}
		out[i].ExternalUIDs = append(out[i].ExternalUIDs, r.ExternalUID)
	}
	return out, nil
}

// PrimaryUID prefers a row flagged primary, then the earliest binding.
func (s *GormStore) PrimaryUID(ctx context.Context, accountID string) (string, error) {
	var row model.BindingRow
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("is_primary DESC, id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return "", fmt.Errorf("primary uid for %s: %w", accountID, err)
	}
	return row.ExternalUID, nil
}

// Accounts lists distinct game accounts across all scopes.
func (s *GormStore) Accounts(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	err := s.db.WithContext(ctx).
		Model(&model.BindingRow{}).
		Select("account_id, external_uid, MAX(token) AS token").
		Group("account_id, external_uid").
		Order("MIN(id) ASC").
		Scan(&out).Error
	if err != nil {
		metrics.RecordStoreError("accounts")
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
