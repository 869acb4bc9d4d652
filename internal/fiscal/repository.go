package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvent-hq/solvent/internal/platform/db"
	"github.com/solvent-hq/solvent/internal/shared"
)

// Repository persists fiscal years, periods, and snapshots in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fiscalYearColumns = `id, tenant_id, name, year, start_date, end_date, status, closed_at, closed_by, created_by, created_at, updated_at`

const fiscalPeriodColumns = `id, tenant_id, fiscal_year_id, period_no, name, start_date, end_date, status, closed_at, closed_by, closing_notes, reopened_at, reopened_by, reopen_reason, locked_at, locked_by, created_at, updated_at`

const snapshotColumns = `id, tenant_id, period_id, snapshot_type, as_of, lines, total_debit, total_credit, is_balanced, checksum, created_at`

// WithTx runs fn inside a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("fiscal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetFiscalYear returns one fiscal year without its periods.
func (r *Repository) GetFiscalYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE tenant_id = $1 AND id = $2`,
		tenantID, yearID)
	return scanFiscalYear(row)
}

// ListFiscalYears returns the tenant's fiscal years, newest first.
func (r *Repository) ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]FiscalYear, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE tenant_id = $1 ORDER BY year DESC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("fiscal: list years: %w", err)
	}
	defer rows.Close()

	var years []FiscalYear
	for rows.Next() {
		year, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, year)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fiscal: list years: %w", err)
	}
	return years, nil
}

// ListPeriods returns a year's periods in calendar order.
func (r *Repository) ListPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) ([]FiscalPeriod, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fiscalPeriodColumns+` FROM fiscal_periods WHERE tenant_id = $1 AND fiscal_year_id = $2 ORDER BY period_no`,
		tenantID, yearID)
	if err != nil {
		return nil, fmt.Errorf("fiscal: list periods: %w", err)
	}
	defer rows.Close()

	var periods []FiscalPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fiscal: list periods: %w", err)
	}
	return periods, nil
}

// GetPeriod returns one period.
func (r *Repository) GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fiscalPeriodColumns+` FROM fiscal_periods WHERE tenant_id = $1 AND id = $2`,
		tenantID, periodID)
	return scanPeriod(row)
}

// GetPeriodByDate returns the period containing the date.
func (r *Repository) GetPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (FiscalPeriod, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+fiscalPeriodColumns+` FROM fiscal_periods
		WHERE tenant_id = $1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`,
		tenantID, date)
	return scanPeriod(row)
}

// GetSnapshot returns a stored trial balance snapshot.
func (r *Repository) GetSnapshot(ctx context.Context, tenantID uuid.UUID, periodID int64, snapshotType string) (TrialBalanceSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM trial_balance_snapshots WHERE tenant_id = $1 AND period_id = $2 AND snapshot_type = $3`,
		tenantID, periodID, snapshotType)
	return scanSnapshot(row)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) HasOverlappingYear(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error) {
	var overlap bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM fiscal_years
			WHERE tenant_id = $1 AND start_date <= $3 AND end_date >= $2
		)`,
		tenantID, start, end).Scan(&overlap)
	if err != nil {
		return false, fmt.Errorf("fiscal: check overlap: %w", err)
	}
	return overlap, nil
}

func (r *txRepository) InsertFiscalYear(ctx context.Context, in InsertFiscalYearInput) (FiscalYear, error) {
	year := FiscalYear{
		TenantID:  in.TenantID,
		Name:      in.Name,
		Year:      in.Year,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    shared.PeriodStatusOpen,
		CreatedBy: in.CreatedBy,
	}
	err := r.tx.QueryRow(ctx,
		`INSERT INTO fiscal_years (tenant_id, name, year, start_date, end_date, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, 'OPEN', $6)
		 RETURNING id, created_at, updated_at`,
		in.TenantID, in.Name, in.Year, in.StartDate, in.EndDate, in.CreatedBy,
	).Scan(&year.ID, &year.CreatedAt, &year.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23P01") {
			return FiscalYear{}, ErrFiscalYearOverlap
		}
		return FiscalYear{}, fmt.Errorf("fiscal: insert year: %w", err)
	}
	return year, nil
}

func (r *txRepository) InsertPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64, windows []PeriodWindow) ([]FiscalPeriod, error) {
	periods := make([]FiscalPeriod, 0, len(windows))
	for _, w := range windows {
		period := FiscalPeriod{
			TenantID:     tenantID,
			FiscalYearID: yearID,
			PeriodNo:     w.PeriodNo,
			Name:         w.Name,
			StartDate:    w.StartDate,
			EndDate:      w.EndDate,
			Status:       shared.PeriodStatusOpen,
		}
		err := r.tx.QueryRow(ctx,
			`INSERT INTO fiscal_periods (tenant_id, fiscal_year_id, period_no, name, start_date, end_date, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'OPEN')
			 RETURNING id, created_at, updated_at`,
			tenantID, yearID, w.PeriodNo, w.Name, w.StartDate, w.EndDate,
		).Scan(&period.ID, &period.CreatedAt, &period.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("fiscal: insert period %d: %w", w.PeriodNo, err)
		}
		periods = append(periods, period)
	}
	return periods, nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+fiscalPeriodColumns+` FROM fiscal_periods WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, periodID)
	return scanPeriod(row)
}

func (r *txRepository) CountOpenEarlierPeriods(ctx context.Context, tenantID uuid.UUID, before time.Time) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM fiscal_periods WHERE tenant_id = $1 AND start_date < $2 AND status = 'OPEN'`,
		tenantID, before).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fiscal: count open earlier periods: %w", err)
	}
	return count, nil
}

func (r *txRepository) ListDraftJournals(ctx context.Context, tenantID uuid.UUID, periodID int64) ([]string, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT entry_number FROM journal_entries WHERE tenant_id = $1 AND period_id = $2 AND status = 'DRAFT' ORDER BY entry_number`,
		tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("fiscal: list draft journals: %w", err)
	}
	defer rows.Close()
	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("fiscal: scan draft journal: %w", err)
		}
		numbers = append(numbers, number)
	}
	return numbers, rows.Err()
}

func (r *txRepository) UpsertSnapshot(ctx context.Context, snap TrialBalanceSnapshot) (TrialBalanceSnapshot, error) {
	lines, err := json.Marshal(snap.Lines)
	if err != nil {
		return TrialBalanceSnapshot{}, fmt.Errorf("fiscal: encode snapshot lines: %w", err)
	}
	err = r.tx.QueryRow(ctx,
		`INSERT INTO trial_balance_snapshots (tenant_id, period_id, snapshot_type, as_of, lines, total_debit, total_credit, is_balanced, checksum)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (tenant_id, period_id, snapshot_type) DO UPDATE SET
			as_of = EXCLUDED.as_of,
			lines = EXCLUDED.lines,
			total_debit = EXCLUDED.total_debit,
			total_credit = EXCLUDED.total_credit,
			is_balanced = EXCLUDED.is_balanced,
			checksum = EXCLUDED.checksum,
			created_at = NOW()
		 RETURNING id, created_at`,
		snap.TenantID, snap.PeriodID, snap.SnapshotType, snap.AsOf, lines,
		db.DecimalArg(snap.TotalDebit), db.DecimalArg(snap.TotalCredit), snap.Balanced, snap.Checksum,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return TrialBalanceSnapshot{}, fmt.Errorf("fiscal: upsert snapshot: %w", err)
	}
	return snap, nil
}

func (r *txRepository) MarkPeriodClosed(ctx context.Context, tenantID uuid.UUID, periodID int64, closedBy uuid.UUID, at time.Time, notes string) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE fiscal_periods
		 SET status = 'CLOSED', closed_at = $3, closed_by = $4, closing_notes = $5, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, periodID, at, closedBy, notes)
	if err != nil {
		return fmt.Errorf("fiscal: close period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) MarkPeriodReopened(ctx context.Context, tenantID uuid.UUID, periodID int64, reopenedBy uuid.UUID, at time.Time, reason string) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE fiscal_periods
		 SET status = 'OPEN', closed_at = NULL, closed_by = NULL, closing_notes = '',
			reopened_at = $3, reopened_by = $4, reopen_reason = $5, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, periodID, at, reopenedBy, reason)
	if err != nil {
		return fmt.Errorf("fiscal: reopen period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) MarkPeriodLocked(ctx context.Context, tenantID uuid.UUID, periodID int64, lockedBy uuid.UUID, at time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE fiscal_periods
		 SET status = 'LOCKED', locked_at = $3, locked_by = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, periodID, at, lockedBy)
	if err != nil {
		return fmt.Errorf("fiscal: lock period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) GetFiscalYearForUpdate(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error) {
	row := r.tx.QueryRow(ctx,
		`SELECT `+fiscalYearColumns+` FROM fiscal_years WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, yearID)
	return scanFiscalYear(row)
}

func (r *txRepository) CountUnclosedPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM fiscal_periods WHERE tenant_id = $1 AND fiscal_year_id = $2 AND status = 'OPEN'`,
		tenantID, yearID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fiscal: count unclosed periods: %w", err)
	}
	return count, nil
}

func (r *txRepository) MarkYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, closedBy uuid.UUID, at time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE fiscal_years
		 SET status = 'CLOSED', closed_at = $3, closed_by = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, yearID, at, closedBy)
	if err != nil {
		return fmt.Errorf("fiscal: close year: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFiscalYearNotFound
	}
	return nil
}

func scanFiscalYear(row pgx.Row) (FiscalYear, error) {
	var y FiscalYear
	err := row.Scan(
		&y.ID, &y.TenantID, &y.Name, &y.Year, &y.StartDate, &y.EndDate, &y.Status,
		&y.ClosedAt, &y.ClosedBy, &y.CreatedBy, &y.CreatedAt, &y.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return FiscalYear{}, ErrFiscalYearNotFound
	}
	if err != nil {
		return FiscalYear{}, fmt.Errorf("fiscal: scan year: %w", err)
	}
	return y, nil
}

func scanPeriod(row pgx.Row) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := row.Scan(
		&p.ID, &p.TenantID, &p.FiscalYearID, &p.PeriodNo, &p.Name, &p.StartDate, &p.EndDate, &p.Status,
		&p.ClosedAt, &p.ClosedBy, &p.ClosingNotes, &p.ReopenedAt, &p.ReopenedBy, &p.ReopenReason,
		&p.LockedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return FiscalPeriod{}, ErrPeriodNotFound
	}
	if err != nil {
		return FiscalPeriod{}, fmt.Errorf("fiscal: scan period: %w", err)
	}
	return p, nil
}

func scanSnapshot(row pgx.Row) (TrialBalanceSnapshot, error) {
	var (
		s           TrialBalanceSnapshot
		rawLines    []byte
		totalDebit  pgtype.Numeric
		totalCredit pgtype.Numeric
	)
	err := row.Scan(
		&s.ID, &s.TenantID, &s.PeriodID, &s.SnapshotType, &s.AsOf, &rawLines,
		&totalDebit, &totalCredit, &s.Balanced, &s.Checksum, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return TrialBalanceSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return TrialBalanceSnapshot{}, fmt.Errorf("fiscal: scan snapshot: %w", err)
	}
	if err := json.Unmarshal(rawLines, &s.Lines); err != nil {
		return TrialBalanceSnapshot{}, fmt.Errorf("fiscal: decode snapshot lines: %w", err)
	}
	s.TotalDebit = db.NumericToDecimal(totalDebit)
	s.TotalCredit = db.NumericToDecimal(totalCredit)
	return s, nil
}
