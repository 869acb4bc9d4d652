package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/platform/db"
)

// Repository runs the aggregate queries over journal data. Reads go
// straight to the pool; the projector never locks rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) AccountMovements(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) ([]LedgerRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.entry_number, e.entry_date, e.description, l.memo, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.tenant_id = l.tenant_id
WHERE l.tenant_id=$1 AND l.account_id=$2 AND e.status='POSTED' AND e.entry_date >= $3 AND e.entry_date < $4
ORDER BY e.entry_date ASC, e.id ASC, l.line_no ASC`, tenantID, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerRow
	for rows.Next() {
		var row LedgerRow
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&row.EntryID, &row.EntryNumber, &row.EntryDate, &row.Description, &row.Memo, &debit, &credit); err != nil {
			return nil, err
		}
		row.Debit = db.NumericToDecimal(debit)
		row.Credit = db.NumericToDecimal(credit)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) AccountAggregate(ctx context.Context, tenantID uuid.UUID, accountID int64, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.tenant_id = l.tenant_id
WHERE l.tenant_id=$1 AND l.account_id=$2 AND e.status='POSTED' AND e.entry_date < $3`,
		tenantID, accountID, before).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return db.NumericToDecimal(debit), db.NumericToDecimal(credit), nil
}

func (r *Repository) TrialBalance(ctx context.Context, tenantID uuid.UUID, before time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type, a.normal_balance, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.tenant_id = l.tenant_id
JOIN accounts a ON a.id = l.account_id AND a.tenant_id = l.tenant_id
WHERE l.tenant_id=$1 AND e.status='POSTED' AND e.entry_date < $2
GROUP BY a.id, a.code, a.name, a.type, a.normal_balance
ORDER BY a.code ASC`, tenantID, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&row.AccountID, &row.AccountCode, &row.AccountName, &row.AccountType, &row.NormalBalance, &debit, &credit); err != nil {
			return nil, err
		}
		row.Debit = db.NumericToDecimal(debit)
		row.Credit = db.NumericToDecimal(credit)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) TypeAggregate(ctx context.Context, tenantID uuid.UUID, accountType accounts.Type, before time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id AND e.tenant_id = l.tenant_id
JOIN accounts a ON a.id = l.account_id AND a.tenant_id = l.tenant_id
WHERE l.tenant_id=$1 AND a.type=$2 AND e.status='POSTED' AND e.entry_date < $3`,
		tenantID, string(accountType), before).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return db.NumericToDecimal(debit), db.NumericToDecimal(credit), nil
}
