// Package accounts exposes a read-only view of the platform-owned chart of
// accounts. The kernel resolves and classifies accounts here but never
// creates or mutates them.
package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/solvent-hq/solvent/internal/shared"
)

// Type enumerates chart of accounts categories.
type Type string

const (
	TypeAsset     Type = "ASSET"
	TypeLiability Type = "LIABILITY"
	TypeEquity    Type = "EQUITY"
	TypeIncome    Type = "INCOME"
	TypeExpense   Type = "EXPENSE"
)

// NormalBalance marks which side increases an account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// DefaultNormalBalance returns the conventional balance side for a type.
func DefaultNormalBalance(t Type) NormalBalance {
	switch t {
	case TypeAsset, TypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// Account models a chart of accounts node.
type Account struct {
	ID            int64
	TenantID      uuid.UUID
	Code          string
	Name          string
	Type          Type
	NormalBalance NormalBalance
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ErrAccountNotFound indicates a missing or foreign-tenant account.
var ErrAccountNotFound = shared.NewError("ACCOUNT_NOT_FOUND", shared.CategoryValidation, "accounts: account not found")

// AllTypes lists every account type in reporting order.
func AllTypes() []Type {
	return []Type{TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense}
}
