package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/shared"
)

// RepositoryPort abstracts the aggregate queries behind the projector.
// All date parameters are exclusive upper bounds.
type RepositoryPort interface {
	AccountMovements(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) ([]LedgerRow, error)
	AccountAggregate(ctx context.Context, tenantID uuid.UUID, accountID int64, before time.Time) (debit, credit decimal.Decimal, err error)
	TrialBalance(ctx context.Context, tenantID uuid.UUID, before time.Time) ([]TrialBalanceRow, error)
	TypeAggregate(ctx context.Context, tenantID uuid.UUID, accountType accounts.Type, before time.Time) (debit, credit decimal.Decimal, err error)
}

// DirectoryPort resolves accounts for statements.
type DirectoryPort interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error)
}

// Service computes ledger projections.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, directory DirectoryPort) *Service {
	return &Service{repo: repo, directory: directory}
}

// AccountLedger builds the statement for one account over a date range.
// The opening balance aggregates every posted movement before the range,
// and each row carries the running balance signed onto the account's
// normal side.
func (s *Service) AccountLedger(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (AccountLedger, error) {
	if accountID == 0 {
		return AccountLedger{}, shared.Invalidf("ledger: account id required")
	}
	if from.IsZero() || to.IsZero() {
		return AccountLedger{}, shared.Invalidf("ledger: date range required")
	}
	from, to = dateOnly(from), dateOnly(to)
	if to.Before(from) {
		return AccountLedger{}, shared.Invalidf("ledger: range end precedes start")
	}
	account, err := s.directory.Get(ctx, tenantID, accountID)
	if err != nil {
		return AccountLedger{}, err
	}
	openDebit, openCredit, err := s.repo.AccountAggregate(ctx, tenantID, accountID, from)
	if err != nil {
		return AccountLedger{}, err
	}
	opening := signedBalance(account.NormalBalance, openDebit, openCredit)
	rows, err := s.repo.AccountMovements(ctx, tenantID, accountID, from, endExclusive(to))
	if err != nil {
		return AccountLedger{}, err
	}
	running := opening
	for i := range rows {
		running = running.Add(signedBalance(account.NormalBalance, rows[i].Debit, rows[i].Credit))
		rows[i].Balance = running
	}
	return AccountLedger{
		Account:        account,
		From:           from,
		To:             to,
		OpeningBalance: opening,
		Rows:           rows,
		NetMovement:    running.Sub(opening),
		ClosingBalance: running,
	}, nil
}

// AccountBalance returns the signed balance of one account as of a date,
// inclusive.
func (s *Service) AccountBalance(ctx context.Context, tenantID uuid.UUID, accountID int64, asOf time.Time) (Balance, error) {
	if accountID == 0 {
		return Balance{}, shared.Invalidf("ledger: account id required")
	}
	if asOf.IsZero() {
		return Balance{}, shared.Invalidf("ledger: as-of date required")
	}
	account, err := s.directory.Get(ctx, tenantID, accountID)
	if err != nil {
		return Balance{}, err
	}
	debit, credit, err := s.repo.AccountAggregate(ctx, tenantID, accountID, endExclusive(asOf))
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Account: account,
		AsOf:    dateOnly(asOf),
		Debit:   debit,
		Credit:  credit,
		Balance: signedBalance(account.NormalBalance, debit, credit),
	}, nil
}

// TrialBalance aggregates posted activity per account through the as-of
// date, inclusive.
func (s *Service) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]TrialBalanceRow, error) {
	if asOf.IsZero() {
		return nil, shared.Invalidf("ledger: as-of date required")
	}
	return s.repo.TrialBalance(ctx, tenantID, endExclusive(asOf))
}

// SummaryByType aggregates every account type in parallel and evaluates
// the accounting equation: assets = liabilities + equity + income -
// expenses. A non-zero difference indicates stored data lost double-entry
// integrity.
func (s *Service) SummaryByType(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (Summary, error) {
	if asOf.IsZero() {
		return Summary{}, shared.Invalidf("ledger: as-of date required")
	}
	cutoff := endExclusive(asOf)
	types := accounts.AllTypes()
	totals := make([]TypeTotal, len(types))

	g, ctx := errgroup.WithContext(ctx)
	for i, accountType := range types {
		g.Go(func() error {
			debit, credit, err := s.repo.TypeAggregate(ctx, tenantID, accountType, cutoff)
			if err != nil {
				return err
			}
			totals[i] = TypeTotal{
				Type:   accountType,
				Debit:  debit,
				Credit: credit,
				Net:    signedBalance(accounts.DefaultNormalBalance(accountType), debit, credit),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	byType := make(map[accounts.Type]decimal.Decimal, len(totals))
	for _, total := range totals {
		byType[total.Type] = total.Net
	}
	rhs := byType[accounts.TypeLiability].
		Add(byType[accounts.TypeEquity]).
		Add(byType[accounts.TypeIncome]).
		Sub(byType[accounts.TypeExpense])
	difference := byType[accounts.TypeAsset].Sub(rhs)

	return Summary{
		AsOf:       dateOnly(asOf),
		Totals:     totals,
		Difference: difference,
		Balanced:   difference.IsZero(),
	}, nil
}
