// Package ledger projects posted journal activity into account
// statements, point-in-time balances, and trial balance reports. It is
// strictly read-only: the journal package owns every row this package
// aggregates, and drafts are never visible here.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/accounts"
)

// LedgerRow is one posted movement against an account, carrying the
// running balance after applying it.
type LedgerRow struct {
	EntryID     int64
	EntryNumber string
	EntryDate   time.Time
	Description string
	Memo        string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.Decimal
}

// AccountLedger is the account statement over a date range. Opening plus
// net movement always equals closing.
type AccountLedger struct {
	Account        accounts.Account
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	Rows           []LedgerRow
	NetMovement    decimal.Decimal
	ClosingBalance decimal.Decimal
}

// Balance is a point-in-time account balance with its raw components.
type Balance struct {
	Account accounts.Account
	AsOf    time.Time
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Balance decimal.Decimal
}

// TrialBalanceRow aggregates one account's posted debits and credits
// through a cutoff date. Accounts without activity are omitted.
type TrialBalanceRow struct {
	AccountID     int64
	AccountCode   string
	AccountName   string
	AccountType   accounts.Type
	NormalBalance accounts.NormalBalance
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// TypeTotal carries aggregate activity for one account type. Net is
// signed onto the type's increasing side.
type TypeTotal struct {
	Type   accounts.Type
	Debit  decimal.Decimal
	Credit decimal.Decimal
	Net    decimal.Decimal
}

// Summary reports balances per account type together with the accounting
// equation verdict. An unbalanced summary means stored data violates
// double-entry, not that the caller did anything wrong.
type Summary struct {
	AsOf       time.Time
	Totals     []TypeTotal
	Difference decimal.Decimal
	Balanced   bool
}

// signedBalance nets debit and credit onto the account's increasing side.
func signedBalance(normal accounts.NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == accounts.NormalDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// endExclusive converts an inclusive as-of date into the exclusive cutoff
// the aggregate queries expect.
func endExclusive(asOf time.Time) time.Time {
	return dateOnly(asOf).AddDate(0, 0, 1)
}
