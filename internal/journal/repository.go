package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/platform/db"
	"github.com/solvent-hq/solvent/internal/shared"
)

// Repository persists journal entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertEntry(ctx context.Context, in InsertEntryInput) (JournalEntry, error)
	InsertLines(ctx context.Context, tenantID uuid.UUID, entryID int64, lines []LineInput) ([]JournalLine, error)
	GetEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, []JournalLine, error)
	GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, []JournalLine, error)
	GetEntryByNumber(ctx context.Context, tenantID uuid.UUID, number string) (JournalEntry, []JournalLine, error)
	GetEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, []JournalLine, error)
	ListEntries(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, int, error)
	GetPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error)
	LockPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error)
	GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error)
	MarkPosted(ctx context.Context, tenantID uuid.UUID, entryID int64, postedBy uuid.UUID, at time.Time) error
	MarkReversed(ctx context.Context, tenantID uuid.UUID, originalID, reversalID int64) error
	DeleteEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) error
}

// InsertEntryInput carries column values for a new entry row.
type InsertEntryInput struct {
	TenantID    uuid.UUID
	EntryDate   time.Time
	Description string
	SourceType  string
	SourceID    *uuid.UUID
	SourceRef   string
	PeriodID    int64
	Status      Status
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	ReversalOf  *int64
	CreatedBy   uuid.UUID
	PostedBy    *uuid.UUID
	PostedAt    *time.Time
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, tenant_id, entry_number, entry_date, source_type, source_id, source_ref, description, status, period_id, total_debit, total_credit, reversal_of, reversed_by, created_by, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var debit, credit pgtype.Numeric
	err := row.Scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.SourceType, &e.SourceID, &e.SourceRef,
		&e.Description, &e.Status, &e.PeriodID, &debit, &credit, &e.ReversalOf, &e.ReversedBy,
		&e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	e.TotalDebit = db.NumericToDecimal(debit)
	e.TotalCredit = db.NumericToDecimal(credit)
	return e, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in InsertEntryInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, entry_number, entry_date, source_type, source_id, source_ref, description, status, period_id, total_debit, total_credit, reversal_of, created_by, posted_by, posted_at)
VALUES ($1, next_journal_number($1, $2), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, entry_number, created_at, updated_at`,
		in.TenantID, in.EntryDate, in.SourceType, in.SourceID, in.SourceRef, in.Description, in.Status, in.PeriodID,
		db.DecimalArg(in.TotalDebit), db.DecimalArg(in.TotalCredit), in.ReversalOf, in.CreatedBy, in.PostedBy, in.PostedAt)
	entry := JournalEntry{
		TenantID:    in.TenantID,
		EntryDate:   in.EntryDate,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
		SourceRef:   in.SourceRef,
		Description: in.Description,
		Status:      in.Status,
		PeriodID:    in.PeriodID,
		TotalDebit:  in.TotalDebit,
		TotalCredit: in.TotalCredit,
		ReversalOf:  in.ReversalOf,
		CreatedBy:   in.CreatedBy,
		PostedBy:    in.PostedBy,
		PostedAt:    in.PostedAt,
	}
	if err := row.Scan(&entry.ID, &entry.EntryNumber, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		if isUniqueViolation(err, "uq_journal_entries_source") {
			return JournalEntry{}, ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, tenantID uuid.UUID, entryID int64, lines []LineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for i, line := range lines {
		inserted := JournalLine{
			EntryID:   entryID,
			LineNo:    i + 1,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (tenant_id, entry_id, line_no, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
			tenantID, entryID, i+1, line.AccountID, db.DecimalArg(line.Debit), db.DecimalArg(line.Credit), line.Memo).
			Scan(&inserted.ID, &inserted.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, []JournalLine, error) {
	return r.getEntry(ctx, tenantID, entryID, false)
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, []JournalLine, error) {
	return r.getEntry(ctx, tenantID, entryID, true)
}

func (r *txRepository) getEntry(ctx context.Context, tenantID uuid.UUID, entryID int64, forUpdate bool) (JournalEntry, []JournalLine, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.entryWithLines(ctx, tenantID, query, tenantID, entryID)
}

func (r *txRepository) GetEntryByNumber(ctx context.Context, tenantID uuid.UUID, number string) (JournalEntry, []JournalLine, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1 AND entry_number=$2`
	return r.entryWithLines(ctx, tenantID, query, tenantID, number)
}

func (r *txRepository) GetEntryBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, []JournalLine, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE tenant_id=$1 AND source_type=$2 AND source_id=$3`
	return r.entryWithLines(ctx, tenantID, query, tenantID, sourceType, sourceID)
}

func (r *txRepository) entryWithLines(ctx context.Context, tenantID uuid.UUID, query string, args ...any) (JournalEntry, []JournalLine, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, nil, ErrJournalNotFound
		}
		return JournalEntry{}, nil, err
	}
	lines, err := r.listLines(ctx, tenantID, entry.ID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) listLines(ctx context.Context, tenantID uuid.UUID, entryID int64) ([]JournalLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, memo, created_at
FROM journal_lines WHERE tenant_id=$1 AND entry_id=$2 ORDER BY line_no ASC`, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var debit, credit pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &debit, &credit, &line.Memo, &line.CreatedAt); err != nil {
			return nil, err
		}
		line.Debit = db.NumericToDecimal(debit)
		line.Credit = db.NumericToDecimal(credit)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, int, error) {
	where := `WHERE tenant_id=$1`
	args := []any{tenantID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, DateOnly(filter.From))
		where += fmt.Sprintf(` AND entry_date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, DateOnly(filter.To))
		where += fmt.Sprintf(` AND entry_date <= $%d`, len(args))
	}
	var total int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, p.PerPage, p.Offset())
	query := `SELECT ` + entryColumns + ` FROM journal_entries ` + where +
		fmt.Sprintf(` ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (r *txRepository) GetPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error) {
	return r.periodBy(ctx, `SELECT id, start_date, end_date, status FROM fiscal_periods
WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, tenantID, date)
}

func (r *txRepository) LockPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (Period, error) {
	return r.periodBy(ctx, `SELECT id, start_date, end_date, status FROM fiscal_periods
WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, tenantID, date)
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	return r.periodBy(ctx, `SELECT id, start_date, end_date, status FROM fiscal_periods
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, periodID)
}

func (r *txRepository) periodBy(ctx context.Context, query string, args ...any) (Period, error) {
	var p Period
	err := r.tx.QueryRow(ctx, query, args...).Scan(&p.ID, &p.StartDate, &p.EndDate, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, tenantID uuid.UUID, entryID int64, postedBy uuid.UUID, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_by=$3, posted_at=$4, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, entryID, postedBy, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, tenantID uuid.UUID, originalID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversed_by=$3, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, originalID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE tenant_id=$1 AND entry_id=$2`, tenantID, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
