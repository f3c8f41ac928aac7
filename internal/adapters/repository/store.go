// Package repository defines the record and binding stores and their gorm
// implementation.
package repository

import (
	"context"

	"github.com/okian/slashboard/internal/domain/model"
)

// Store persists one current challenge record per
// (account, external uid, challenge).
type Store interface {
	// Upsert overwrites the record stored under the submission's key, or
	// inserts it when absent, and returns the stored row.
	Upsert(ctx context.Context, sub model.Submission) (model.ChallengeRecord, error)

	// BatchFetch returns every record of challengeID whose pair is in pairs,
	// in insertion order, using a single query. Failures are logged and
	// reported as an empty result.
	BatchFetch(ctx context.Context, pairs []model.Pair, challengeID int) []model.ChallengeRecord

	// TopPerUID returns one record per external uid (its highest score) for
	// challengeID, in insertion order. Same failure policy as BatchFetch.
	TopPerUID(ctx context.Context, challengeID int) []model.ChallengeRecord

	// PurgeAll deletes every record.
	PurgeAll(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) int
}

// BindingStore resolves which game accounts take part in a leaderboard.
type BindingStore interface {
	// Bind registers (or updates) a game account for a platform account.
	Bind(ctx context.Context, row model.BindingRow) error

	// Bindings returns every account bound in scope with its game accounts,
	// in registration order.
	Bindings(ctx context.Context, scope string) ([]model.Binding, error)

	// PrimaryUID returns the game account used to identify the platform
	// account. Returns ErrNotFound when the account has no bindings.
	PrimaryUID(ctx context.Context, accountID string) (string, error)

	// Accounts lists every distinct bound game account with its credential.
	Accounts(ctx context.Context) ([]model.Account, error)
}
