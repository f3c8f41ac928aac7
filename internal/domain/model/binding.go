package model

import "time"

// BindingRow links one game account to a platform account inside a scope
// (for example a chat group).
type BindingRow struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Scope       string    `gorm:"column:scope;not null;uniqueIndex:idx_binding_key,priority:1" json:"scope"`
	AccountID   string    `gorm:"column:account_id;not null;uniqueIndex:idx_binding_key,priority:2;index" json:"account_id"`
	ExternalUID string    `gorm:"column:external_uid;not null;uniqueIndex:idx_binding_key,priority:3" json:"external_uid"`
	Primary     bool      `gorm:"column:is_primary;not null;default:false" json:"primary"`
	Token       string    `gorm:"column:token" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (BindingRow) TableName() string { return "bindings" }

// Binding is an account with every game account it registered in a scope.
type Binding struct {
	AccountID    string
	ExternalUIDs []string
}

// Account is a refreshable game account with its upstream credential.
type Account struct {
	AccountID   string
	ExternalUID string
	Token       string
}

// Pairs flattens bindings into participant pairs. Accounts with several
// game accounts contribute one pair per game account; blank uids are skipped
// and repeated pairs collapse.
func Pairs(bindings []Binding) []Pair {
	seen := make(map[Pair]struct{})
	out := make([]Pair, 0, len(bindings))
	for _, b := range bindings {
		for _, uid := range b.ExternalUIDs {
			if uid == "" {
				continue
			}
			p := Pair{AccountID: b.AccountID, ExternalUID: uid}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
