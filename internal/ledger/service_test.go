package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/shared"
)

var ledgerTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")

type memoryMovement struct {
	entryID   int64
	number    string
	date      time.Time
	desc      string
	accountID int64
	debit     decimal.Decimal
	credit    decimal.Decimal
	posted    bool
}

type memoryLedgerRepo struct {
	accounts  map[int64]accounts.Account
	movements []memoryMovement
}

func (r *memoryLedgerRepo) AccountMovements(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) ([]LedgerRow, error) {
	var out []LedgerRow
	for _, m := range r.movements {
		if !m.posted || m.accountID != accountID {
			continue
		}
		if m.date.Before(from) || !m.date.Before(to) {
			continue
		}
		out = append(out, LedgerRow{
			EntryID:     m.entryID,
			EntryNumber: m.number,
			EntryDate:   m.date,
			Description: m.desc,
			Debit:       m.debit,
			Credit:      m.credit,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

func (r *memoryLedgerRepo) AccountAggregate(ctx context.Context, tenantID uuid.UUID, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, m := range r.movements {
		if !m.posted || m.accountID != accountID || !m.date.Before(before) {
			continue
		}
		debit = debit.Add(m.debit)
		credit = credit.Add(m.credit)
	}
	return debit, credit, nil
}

func (r *memoryLedgerRepo) TrialBalance(ctx context.Context, tenantID uuid.UUID, before time.Time) ([]TrialBalanceRow, error) {
	byAccount := make(map[int64]*TrialBalanceRow)
	for _, m := range r.movements {
		if !m.posted || !m.date.Before(before) {
			continue
		}
		row, ok := byAccount[m.accountID]
		if !ok {
			account := r.accounts[m.accountID]
			row = &TrialBalanceRow{
				AccountID:     account.ID,
				AccountCode:   account.Code,
				AccountName:   account.Name,
				AccountType:   account.Type,
				NormalBalance: account.NormalBalance,
			}
			byAccount[m.accountID] = row
		}
		row.Debit = row.Debit.Add(m.debit)
		row.Credit = row.Credit.Add(m.credit)
	}
	out := make([]TrialBalanceRow, 0, len(byAccount))
	for _, row := range byAccount {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out, nil
}

func (r *memoryLedgerRepo) TypeAggregate(ctx context.Context, tenantID uuid.UUID, accountType accounts.Type, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, m := range r.movements {
		if !m.posted || !m.date.Before(before) {
			continue
		}
		if r.accounts[m.accountID].Type != accountType {
			continue
		}
		debit = debit.Add(m.debit)
		credit = credit.Add(m.credit)
	}
	return debit, credit, nil
}

type stubLedgerDirectory struct {
	accounts map[int64]accounts.Account
}

func (d *stubLedgerDirectory) Get(ctx context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error) {
	a, ok := d.accounts[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return a, nil
}

func on(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func newLedgerFixture() (*Service, *memoryLedgerRepo) {
	chart := map[int64]accounts.Account{
		1: {ID: 1, Code: "1000", Name: "Cash", Type: accounts.TypeAsset, NormalBalance: accounts.NormalDebit, Active: true},
		2: {ID: 2, Code: "4000", Name: "Revenue", Type: accounts.TypeIncome, NormalBalance: accounts.NormalCredit, Active: true},
		3: {ID: 3, Code: "5000", Name: "Rent Expense", Type: accounts.TypeExpense, NormalBalance: accounts.NormalDebit, Active: true},
	}
	repo := &memoryLedgerRepo{
		accounts: chart,
		movements: []memoryMovement{
			{entryID: 1, number: "JE-2026-0001", date: on(2026, 1, 5), desc: "cash sale", accountID: 1, debit: amt("1000"), posted: true},
			{entryID: 1, number: "JE-2026-0001", date: on(2026, 1, 5), desc: "cash sale", accountID: 2, credit: amt("1000"), posted: true},
			{entryID: 2, number: "JE-2026-0002", date: on(2026, 1, 20), desc: "office rent", accountID: 3, debit: amt("200"), posted: true},
			{entryID: 2, number: "JE-2026-0002", date: on(2026, 1, 20), desc: "office rent", accountID: 1, credit: amt("200"), posted: true},
			{entryID: 3, number: "JE-2026-0003", date: on(2026, 2, 3), desc: "cash sale", accountID: 1, debit: amt("500"), posted: true},
			{entryID: 3, number: "JE-2026-0003", date: on(2026, 2, 3), desc: "cash sale", accountID: 2, credit: amt("500"), posted: true},
			{entryID: 4, number: "JE-2026-0004", date: on(2026, 2, 15), desc: "parking fees", accountID: 3, debit: amt("100"), posted: true},
			{entryID: 4, number: "JE-2026-0004", date: on(2026, 2, 15), desc: "parking fees", accountID: 1, credit: amt("100"), posted: true},
			{entryID: 5, number: "JE-2026-0005", date: on(2026, 2, 20), desc: "pending adjustment", accountID: 1, debit: amt("999"), posted: false},
			{entryID: 5, number: "JE-2026-0005", date: on(2026, 2, 20), desc: "pending adjustment", accountID: 2, credit: amt("999"), posted: false},
		},
	}
	svc := NewService(repo, &stubLedgerDirectory{accounts: chart})
	return svc, repo
}

func TestAccountLedgerRunningBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	statement, err := svc.AccountLedger(ctx, ledgerTenant, 1, on(2026, 2, 1), on(2026, 2, 28))
	require.NoError(t, err)
	require.True(t, statement.OpeningBalance.Equal(amt("800")), "opening %s", statement.OpeningBalance)
	require.Len(t, statement.Rows, 2)
	require.True(t, statement.Rows[0].Balance.Equal(amt("1300")), "after first row %s", statement.Rows[0].Balance)
	require.True(t, statement.Rows[1].Balance.Equal(amt("1200")), "after second row %s", statement.Rows[1].Balance)
	require.True(t, statement.NetMovement.Equal(amt("400")), "net %s", statement.NetMovement)
	require.True(t, statement.ClosingBalance.Equal(amt("1200")))
	require.True(t, statement.OpeningBalance.Add(statement.NetMovement).Equal(statement.ClosingBalance))
}

func TestAccountLedgerCreditNormalSign(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	statement, err := svc.AccountLedger(ctx, ledgerTenant, 2, on(2026, 1, 1), on(2026, 2, 28))
	require.NoError(t, err)
	require.True(t, statement.OpeningBalance.IsZero())
	require.Len(t, statement.Rows, 2)
	require.True(t, statement.ClosingBalance.Equal(amt("1500")), "closing %s", statement.ClosingBalance)
}

func TestAccountLedgerExcludesDrafts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	statement, err := svc.AccountLedger(ctx, ledgerTenant, 1, on(2026, 2, 1), on(2026, 2, 28))
	require.NoError(t, err)
	for _, row := range statement.Rows {
		require.NotEqual(t, int64(5), row.EntryID, "draft entry leaked into statement")
	}
}

func TestAccountLedgerRejectsBadRange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	_, err := svc.AccountLedger(ctx, ledgerTenant, 1, on(2026, 2, 28), on(2026, 2, 1))
	require.Error(t, err)
	require.Equal(t, shared.CategoryValidation, shared.CategoryOf(err))
}

func TestAccountBalanceAsOfInclusive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	before, err := svc.AccountBalance(ctx, ledgerTenant, 1, on(2026, 2, 2))
	require.NoError(t, err)
	require.True(t, before.Balance.Equal(amt("800")), "before %s", before.Balance)

	onDay, err := svc.AccountBalance(ctx, ledgerTenant, 1, on(2026, 2, 3))
	require.NoError(t, err)
	require.True(t, onDay.Balance.Equal(amt("1300")), "on day %s", onDay.Balance)
}

func TestTrialBalanceCutoff(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	rows, err := svc.TrialBalance(ctx, ledgerTenant, on(2026, 1, 31))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, row := range rows {
		totalDebit = totalDebit.Add(row.Debit)
		totalCredit = totalCredit.Add(row.Credit)
	}
	require.True(t, totalDebit.Equal(amt("1200")), "debits %s", totalDebit)
	require.True(t, totalDebit.Equal(totalCredit))
}

func TestSummaryBalancedEquation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedgerFixture()

	summary, err := svc.SummaryByType(ctx, ledgerTenant, on(2026, 2, 28))
	require.NoError(t, err)
	require.True(t, summary.Balanced)
	require.True(t, summary.Difference.IsZero())
	require.Len(t, summary.Totals, 5)

	byType := make(map[accounts.Type]TypeTotal)
	for _, total := range summary.Totals {
		byType[total.Type] = total
	}
	require.True(t, byType[accounts.TypeAsset].Net.Equal(amt("1200")))
	require.True(t, byType[accounts.TypeIncome].Net.Equal(amt("1500")))
	require.True(t, byType[accounts.TypeExpense].Net.Equal(amt("300")))
}

func TestSummaryDetectsDrift(t *testing.T) {
	ctx := context.Background()
	svc, repo := newLedgerFixture()

	repo.movements = append(repo.movements, memoryMovement{
		entryID: 6, number: "JE-2026-0006", date: on(2026, 2, 21), desc: "one-sided corruption",
		accountID: 1, debit: amt("50"), posted: true,
	})

	summary, err := svc.SummaryByType(ctx, ledgerTenant, on(2026, 2, 28))
	require.NoError(t, err)
	require.False(t, summary.Balanced)
	require.True(t, summary.Difference.Equal(amt("50")), "difference %s", summary.Difference)
}
