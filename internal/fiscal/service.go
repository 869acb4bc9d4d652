package fiscal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solvent-hq/solvent/internal/ledger"
	"github.com/solvent-hq/solvent/internal/shared"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// RepositoryPort abstracts fiscal persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetFiscalYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error)
	ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]FiscalYear, error)
	ListPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) ([]FiscalPeriod, error)
	GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error)
	GetPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (FiscalPeriod, error)
	GetSnapshot(ctx context.Context, tenantID uuid.UUID, periodID int64, snapshotType string) (TrialBalanceSnapshot, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	HasOverlappingYear(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error)
	InsertFiscalYear(ctx context.Context, in InsertFiscalYearInput) (FiscalYear, error)
	InsertPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64, windows []PeriodWindow) ([]FiscalPeriod, error)
	GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error)
	CountOpenEarlierPeriods(ctx context.Context, tenantID uuid.UUID, before time.Time) (int, error)
	ListDraftJournals(ctx context.Context, tenantID uuid.UUID, periodID int64) ([]string, error)
	UpsertSnapshot(ctx context.Context, snap TrialBalanceSnapshot) (TrialBalanceSnapshot, error)
	MarkPeriodClosed(ctx context.Context, tenantID uuid.UUID, periodID int64, closedBy uuid.UUID, at time.Time, notes string) error
	MarkPeriodReopened(ctx context.Context, tenantID uuid.UUID, periodID int64, reopenedBy uuid.UUID, at time.Time, reason string) error
	MarkPeriodLocked(ctx context.Context, tenantID uuid.UUID, periodID int64, lockedBy uuid.UUID, at time.Time) error
	GetFiscalYearForUpdate(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error)
	CountUnclosedPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) (int, error)
	MarkYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, closedBy uuid.UUID, at time.Time) error
}

// InsertFiscalYearInput carries column values for a new fiscal year row.
type InsertFiscalYearInput struct {
	TenantID  uuid.UUID
	Name      string
	Year      int
	StartDate time.Time
	EndDate   time.Time
	CreatedBy uuid.UUID
}

// TrialBalancePort produces the trial balance rows captured at close.
type TrialBalancePort interface {
	TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]ledger.TrialBalanceRow, error)
}

// SettingsPort reads tenant configuration.
type SettingsPort interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error)
}

// AuditPort records fiscal events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the fiscal year and period lifecycle.
type Service struct {
	repo     RepositoryPort
	balances TrialBalancePort
	settings SettingsPort
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the fiscal service.
func NewService(repo RepositoryPort, balances TrialBalancePort, settings SettingsPort, audit AuditPort) *Service {
	return &Service{repo: repo, balances: balances, settings: settings, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateFiscalYear creates a year with twelve open monthly periods. The
// year's range must not overlap an existing year for the tenant.
func (s *Service) CreateFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	if err := in.Validate(); err != nil {
		return FiscalYear{}, err
	}
	start, end := YearRange(in.Year, in.StartMonth)
	windows := BuildPeriods(in.Year, in.StartMonth)

	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		overlap, err := tx.HasOverlappingYear(ctx, in.TenantID, start, end)
		if err != nil {
			return err
		}
		if overlap {
			return ErrFiscalYearOverlap
		}
		created, err := tx.InsertFiscalYear(ctx, InsertFiscalYearInput{
			TenantID:  in.TenantID,
			Name:      in.Name,
			Year:      in.Year,
			StartDate: start,
			EndDate:   end,
			CreatedBy: in.ActorID,
		})
		if err != nil {
			return err
		}
		periods, err := tx.InsertPeriods(ctx, in.TenantID, created.ID, windows)
		if err != nil {
			return err
		}
		created.Periods = periods
		year = created
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "fiscal.year.create", year.ID, map[string]any{
		"name": year.Name,
		"year": year.Year,
	})
	return year, nil
}

// ClosePeriod runs the ordered close gates, captures the trial balance
// snapshot as of the period end, and flips the period to closed. With
// strict period locking any draft in the period blocks the close; with
// lenient locking drafts produce a warning the caller can override by
// setting force.
func (s *Service) ClosePeriod(ctx context.Context, in ClosePeriodInput) (FiscalPeriod, TrialBalanceSnapshot, error) {
	if in.PeriodID == 0 {
		return FiscalPeriod{}, TrialBalanceSnapshot{}, shared.Invalidf("fiscal: period id required")
	}
	settings, err := s.settings.Settings(ctx, in.TenantID)
	if err != nil {
		return FiscalPeriod{}, TrialBalanceSnapshot{}, err
	}
	if settings.RequireClosingNotes && strings.TrimSpace(in.Notes) == "" {
		return FiscalPeriod{}, TrialBalanceSnapshot{}, ErrClosingNotesRequired
	}

	var period FiscalPeriod
	var snapshot TrialBalanceSnapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		switch current.Status {
		case shared.PeriodStatusClosed:
			return ErrPeriodAlreadyClosed
		case shared.PeriodStatusLocked:
			return ErrPeriodLocked
		}
		openEarlier, err := tx.CountOpenEarlierPeriods(ctx, in.TenantID, current.StartDate)
		if err != nil {
			return err
		}
		if openEarlier > 0 {
			return ErrPreviousPeriodOpen
		}
		drafts, err := tx.ListDraftJournals(ctx, in.TenantID, current.ID)
		if err != nil {
			return err
		}
		if len(drafts) > 0 {
			if settings.StrictPeriodLocking {
				return &DraftJournalsError{Drafts: drafts, Blocking: true}
			}
			if !in.Force {
				return &DraftJournalsError{Drafts: drafts, Blocking: false}
			}
		}
		rows, err := s.balances.TrialBalance(ctx, in.TenantID, current.EndDate)
		if err != nil {
			return err
		}
		content, err := buildSnapshotContent(rows)
		if err != nil {
			return err
		}
		if !content.Balanced {
			return ErrSnapshotUnbalanced
		}
		now := s.now()
		stored, err := tx.UpsertSnapshot(ctx, TrialBalanceSnapshot{
			TenantID:     in.TenantID,
			PeriodID:     current.ID,
			SnapshotType: SnapshotTypeClosing,
			AsOf:         current.EndDate,
			Lines:        content.Lines,
			TotalDebit:   content.TotalDebit,
			TotalCredit:  content.TotalCredit,
			Balanced:     content.Balanced,
			Checksum:     content.Checksum,
		})
		if err != nil {
			return err
		}
		if err := tx.MarkPeriodClosed(ctx, in.TenantID, current.ID, in.ActorID, now, in.Notes); err != nil {
			return err
		}
		current.Status = shared.PeriodStatusClosed
		current.ClosedAt = &now
		current.ClosedBy = &in.ActorID
		current.ClosingNotes = in.Notes
		period = current
		snapshot = stored
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, TrialBalanceSnapshot{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "fiscal.period.close", period.ID, map[string]any{
		"snapshot_id": snapshot.ID,
		"forced":      in.Force,
	})
	return period, snapshot, nil
}

// ReopenPeriod flips a closed period back to open. Tenant configuration
// must allow it, a reason is mandatory, and locked periods never reopen.
// The closing snapshot is kept as the record of the earlier close.
func (s *Service) ReopenPeriod(ctx context.Context, in ReopenPeriodInput) (FiscalPeriod, error) {
	if in.PeriodID == 0 {
		return FiscalPeriod{}, shared.Invalidf("fiscal: period id required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return FiscalPeriod{}, ErrReopenReasonRequired
	}
	settings, err := s.settings.Settings(ctx, in.TenantID)
	if err != nil {
		return FiscalPeriod{}, err
	}
	if !settings.AllowPeriodReopen {
		return FiscalPeriod{}, ErrReopenDisabled
	}

	var period FiscalPeriod
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		if current.Status == shared.PeriodStatusLocked {
			return ErrPeriodLocked
		}
		if current.Status != shared.PeriodStatusClosed {
			return ErrPeriodNotClosed
		}
		if err := shared.ValidatePeriodTransition(current.Status, shared.PeriodStatusOpen); err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkPeriodReopened(ctx, in.TenantID, current.ID, in.ActorID, now, in.Reason); err != nil {
			return err
		}
		current.Status = shared.PeriodStatusOpen
		current.ClosedAt = nil
		current.ClosedBy = nil
		current.ClosingNotes = ""
		current.ReopenedAt = &now
		current.ReopenedBy = &in.ActorID
		current.ReopenReason = in.Reason
		period = current
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "fiscal.period.reopen", period.ID, map[string]any{
		"reason": in.Reason,
	})
	return period, nil
}

// LockPeriod moves a period into its terminal locked state. Open and
// closed periods may lock; a locked period stays locked. The reason is
// kept in the audit trail, not on the period row.
func (s *Service) LockPeriod(ctx context.Context, in LockPeriodInput) (FiscalPeriod, error) {
	if in.PeriodID == 0 {
		return FiscalPeriod{}, shared.Invalidf("fiscal: period id required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return FiscalPeriod{}, ErrLockReasonRequired
	}
	var period FiscalPeriod
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, in.TenantID, in.PeriodID)
		if err != nil {
			return err
		}
		if current.Status == shared.PeriodStatusLocked {
			return ErrPeriodLocked
		}
		if err := shared.ValidatePeriodTransition(current.Status, shared.PeriodStatusLocked); err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkPeriodLocked(ctx, in.TenantID, current.ID, in.ActorID, now); err != nil {
			return err
		}
		current.Status = shared.PeriodStatusLocked
		current.LockedAt = &now
		current.LockedBy = &in.ActorID
		period = current
		return nil
	})
	if err != nil {
		return FiscalPeriod{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "fiscal.period.lock", period.ID, map[string]any{
		"reason": in.Reason,
	})
	return period, nil
}

// CloseFiscalYear closes a year once every period in it is closed or
// locked.
func (s *Service) CloseFiscalYear(ctx context.Context, in CloseFiscalYearInput) (FiscalYear, error) {
	if in.YearID == 0 {
		return FiscalYear{}, shared.Invalidf("fiscal: year id required")
	}
	var year FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetFiscalYearForUpdate(ctx, in.TenantID, in.YearID)
		if err != nil {
			return err
		}
		if current.Status == shared.PeriodStatusClosed {
			return ErrFiscalYearAlreadyClosed
		}
		unclosed, err := tx.CountUnclosedPeriods(ctx, in.TenantID, current.ID)
		if err != nil {
			return err
		}
		if unclosed > 0 {
			return ErrFiscalYearNotClosable
		}
		now := s.now()
		if err := tx.MarkYearClosed(ctx, in.TenantID, current.ID, in.ActorID, now); err != nil {
			return err
		}
		current.Status = shared.PeriodStatusClosed
		current.ClosedAt = &now
		current.ClosedBy = &in.ActorID
		year = current
		return nil
	})
	if err != nil {
		return FiscalYear{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "fiscal.year.close", year.ID, nil)
	return year, nil
}

// GetFiscalYear returns a year with its periods.
func (s *Service) GetFiscalYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error) {
	year, err := s.repo.GetFiscalYear(ctx, tenantID, yearID)
	if err != nil {
		return FiscalYear{}, err
	}
	periods, err := s.repo.ListPeriods(ctx, tenantID, year.ID)
	if err != nil {
		return FiscalYear{}, err
	}
	year.Periods = periods
	return year, nil
}

// ListFiscalYears returns the tenant's years, newest first.
func (s *Service) ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx, tenantID)
}

// GetPeriod returns one period.
func (s *Service) GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error) {
	return s.repo.GetPeriod(ctx, tenantID, periodID)
}

// PeriodForDate returns the period whose window contains the date.
func (s *Service) PeriodForDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (FiscalPeriod, error) {
	if date.IsZero() {
		return FiscalPeriod{}, shared.Invalidf("fiscal: date required")
	}
	return s.repo.GetPeriodByDate(ctx, tenantID, date)
}

// ListPeriods returns a year's periods in calendar order.
func (s *Service) ListPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) ([]FiscalPeriod, error) {
	if yearID == 0 {
		return nil, shared.Invalidf("fiscal: year id required")
	}
	return s.repo.ListPeriods(ctx, tenantID, yearID)
}

// GetClosingSnapshot returns the snapshot captured by the period's close.
func (s *Service) GetClosingSnapshot(ctx context.Context, tenantID uuid.UUID, periodID int64) (TrialBalanceSnapshot, error) {
	if periodID == 0 {
		return TrialBalanceSnapshot{}, shared.Invalidf("fiscal: period id required")
	}
	return s.repo.GetSnapshot(ctx, tenantID, periodID, SnapshotTypeClosing)
}

func (s *Service) record(ctx context.Context, tenantID, actorID uuid.UUID, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "fiscal",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
