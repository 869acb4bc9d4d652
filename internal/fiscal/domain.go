// Package fiscal manages fiscal years, their monthly accounting periods,
// and the period close lifecycle. Closing a period captures an immutable
// trial balance snapshot; reopening keeps that snapshot as the record of
// the earlier close.
package fiscal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/shared"
)

// SnapshotTypeClosing marks the snapshot captured by a period close.
const SnapshotTypeClosing = "CLOSING"

// FiscalYear groups twelve monthly periods under one reporting year.
type FiscalYear struct {
	ID        int64
	TenantID  uuid.UUID
	Name      string
	Year      int
	StartDate time.Time
	EndDate   time.Time
	Status    string
	ClosedAt  *time.Time
	ClosedBy  *uuid.UUID
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Periods   []FiscalPeriod
}

// FiscalPeriod is one monthly posting window. Status moves OPEN to
// CLOSED and back, or to LOCKED, which is terminal.
type FiscalPeriod struct {
	ID           int64
	TenantID     uuid.UUID
	FiscalYearID int64
	PeriodNo     int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Status       string
	ClosedAt     *time.Time
	ClosedBy     *uuid.UUID
	ClosingNotes string
	ReopenedAt   *time.Time
	ReopenedBy   *uuid.UUID
	ReopenReason string
	LockedAt     *time.Time
	LockedBy     *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SnapshotLine is one account row inside a stored snapshot.
type SnapshotLine struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// TrialBalanceSnapshot is the record captured when a period closes. One
// snapshot exists per tenant, period, and type; closing again after a
// reopen replaces it.
type TrialBalanceSnapshot struct {
	ID           int64
	TenantID     uuid.UUID
	PeriodID     int64
	SnapshotType string
	AsOf         time.Time
	Lines        []SnapshotLine
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	Balanced     bool
	Checksum     string
	CreatedAt    time.Time
}

// CreateFiscalYearInput carries the fields for a new fiscal year.
type CreateFiscalYearInput struct {
	TenantID   uuid.UUID
	Name       string
	Year       int
	StartMonth time.Month
	ActorID    uuid.UUID
}

// Validate checks the create request fields.
func (in CreateFiscalYearInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalidf("fiscal: tenant required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return shared.Invalidf("fiscal: name required")
	}
	if in.Year < 1900 || in.Year > 2999 {
		return shared.Invalidf("fiscal: year %d out of range", in.Year)
	}
	if in.StartMonth < time.January || in.StartMonth > time.December {
		return shared.Invalidf("fiscal: start month must be 1 through 12")
	}
	return nil
}

// ClosePeriodInput carries the fields for a period close.
type ClosePeriodInput struct {
	TenantID uuid.UUID
	PeriodID int64
	Notes    string
	Force    bool
	ActorID  uuid.UUID
}

// ReopenPeriodInput carries the fields for reopening a closed period.
type ReopenPeriodInput struct {
	TenantID uuid.UUID
	PeriodID int64
	Reason   string
	ActorID  uuid.UUID
}

// LockPeriodInput carries the fields for permanently locking a period.
type LockPeriodInput struct {
	TenantID uuid.UUID
	PeriodID int64
	Reason   string
	ActorID  uuid.UUID
}

// CloseFiscalYearInput carries the fields for closing a fiscal year.
type CloseFiscalYearInput struct {
	TenantID uuid.UUID
	YearID   int64
	ActorID  uuid.UUID
}

var (
	// ErrFiscalYearNotFound indicates a missing or foreign-tenant year.
	ErrFiscalYearNotFound = shared.NewError("FISCAL_YEAR_NOT_FOUND", shared.CategoryValidation, "fiscal: fiscal year not found")
	// ErrFiscalYearOverlap indicates the new year's range collides with an existing one.
	ErrFiscalYearOverlap = shared.NewError("FISCAL_YEAR_OVERLAP", shared.CategoryConflict, "fiscal: date range overlaps an existing fiscal year")
	// ErrFiscalYearAlreadyClosed indicates the year was closed before.
	ErrFiscalYearAlreadyClosed = shared.NewError("FISCAL_YEAR_ALREADY_CLOSED", shared.CategoryConflict, "fiscal: fiscal year already closed")
	// ErrFiscalYearNotClosable indicates open periods remain in the year.
	ErrFiscalYearNotClosable = shared.NewError("FISCAL_YEAR_NOT_CLOSABLE", shared.CategoryConflict, "fiscal: every period must be closed or locked first")
	// ErrPeriodNotFound indicates a missing or foreign-tenant period.
	ErrPeriodNotFound = shared.NewError("PERIOD_NOT_FOUND", shared.CategoryValidation, "fiscal: period not found")
	// ErrPeriodAlreadyClosed indicates the period was closed before.
	ErrPeriodAlreadyClosed = shared.NewError("PERIOD_ALREADY_CLOSED", shared.CategoryConflict, "fiscal: period is already closed")
	// ErrPeriodLocked indicates the period is in its terminal locked state.
	ErrPeriodLocked = shared.NewError("PERIOD_LOCKED", shared.CategoryConflict, "fiscal: period is locked")
	// ErrPreviousPeriodOpen enforces sequential closing.
	ErrPreviousPeriodOpen = shared.NewError("PREVIOUS_PERIOD_OPEN", shared.CategoryConflict, "fiscal: an earlier period is still open")
	// ErrPeriodNotClosed indicates only closed periods can reopen.
	ErrPeriodNotClosed = shared.NewError("PERIOD_NOT_CLOSED", shared.CategoryConflict, "fiscal: only closed periods can reopen")
	// ErrReopenDisabled indicates tenant configuration forbids reopening.
	ErrReopenDisabled = shared.NewError("REOPEN_DISABLED", shared.CategoryPolicy, "fiscal: tenant configuration does not allow reopening periods")
	// ErrClosingNotesRequired indicates tenant configuration demands close notes.
	ErrClosingNotesRequired = shared.NewError("CLOSING_NOTES_REQUIRED", shared.CategoryPolicy, "fiscal: closing notes are required")
	// ErrReopenReasonRequired indicates the mandatory reopen reason is missing.
	ErrReopenReasonRequired = shared.NewError("REOPEN_REASON_REQUIRED", shared.CategoryValidation, "fiscal: reopen reason is required")
	// ErrLockReasonRequired indicates the mandatory lock reason is missing.
	ErrLockReasonRequired = shared.NewError("LOCK_REASON_REQUIRED", shared.CategoryValidation, "fiscal: lock reason is required")
	// ErrSnapshotNotFound indicates no snapshot exists for the period.
	ErrSnapshotNotFound = shared.NewError("SNAPSHOT_NOT_FOUND", shared.CategoryValidation, "fiscal: snapshot not found")
	// ErrSnapshotUnbalanced indicates the captured trial balance lost
	// double-entry integrity. The close aborts rather than record it.
	ErrSnapshotUnbalanced = shared.NewError("SNAPSHOT_UNBALANCED", shared.CategoryInvariant, "fiscal: trial balance does not balance")
)

// DraftJournalsError reports the draft entries blocking a period close,
// by entry number. With lenient locking the close may be retried with
// force; strict locking always blocks.
type DraftJournalsError struct {
	Drafts   []string
	Blocking bool
}

func (e *DraftJournalsError) Error() string {
	return fmt.Sprintf("fiscal: %d draft journal entries in period: %s", len(e.Drafts), strings.Join(e.Drafts, ", "))
}
