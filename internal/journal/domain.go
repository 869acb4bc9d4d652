// Package journal implements the double-entry journal engine: entry
// validation, the draft/posted/reversed lifecycle, and reversal linking.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/shared"
)

// Status enumerates the journal entry lifecycle.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// PeriodStatus mirrors the fiscal period states the engine gates on.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// SourceManual marks entries captured directly rather than generated from
// an external document.
const SourceManual = "MANUAL"

// SourceReversal marks entries generated by reversing a posted entry.
const SourceReversal = "REVERSAL"

// JournalEntry captures posting metadata. Posted entries are immutable;
// corrections flow through reversal entries.
type JournalEntry struct {
	ID          int64
	TenantID    uuid.UUID
	EntryNumber string
	EntryDate   time.Time
	SourceType  string
	SourceID    *uuid.UUID
	SourceRef   string
	Description string
	Status      Status
	PeriodID    int64
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	ReversalOf  *int64
	ReversedBy  *int64
	CreatedBy   uuid.UUID
	PostedBy    *uuid.UUID
	PostedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores a debit or credit amount against one account.
type JournalLine struct {
	ID        int64
	EntryID   int64
	LineNo    int
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
	CreatedAt time.Time
}

// Period is the engine's view of a fiscal period window.
type Period struct {
	ID        int64
	StartDate time.Time
	EndDate   time.Time
	Status    PeriodStatus
}

// LineInput describes one journal line in a create request.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// CreateInput groups fields required to create a journal entry.
type CreateInput struct {
	TenantID    uuid.UUID
	EntryDate   time.Time
	Description string
	SourceType  string
	SourceID    *uuid.UUID
	SourceRef   string
	SaveAsDraft bool
	ActorID     uuid.UUID
	Lines       []LineInput
}

// ReverseInput wraps parameters for reversing a posted entry.
type ReverseInput struct {
	TenantID     uuid.UUID
	EntryID      int64
	ReversalDate time.Time
	Reason       string
	ActorID      uuid.UUID
}

// ListFilter narrows entry listings.
type ListFilter struct {
	Status  Status
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

var (
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = shared.NewError("TOO_FEW_LINES", shared.CategoryValidation, "journal: at least two lines required")
	// ErrUnbalanced indicates total debit != total credit.
	ErrUnbalanced = shared.NewError("UNBALANCED", shared.CategoryValidation, "journal: debits and credits must balance")
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = shared.NewError("JOURNAL_NOT_FOUND", shared.CategoryValidation, "journal: entry not found")
	// ErrPeriodNotFound indicates no fiscal period covers the date.
	ErrPeriodNotFound = shared.NewError("PERIOD_NOT_FOUND", shared.CategoryValidation, "journal: no fiscal period covers the entry date")
	// ErrPeriodLocked indicates the target period does not accept postings.
	ErrPeriodLocked = shared.NewError("PERIOD_LOCKED", shared.CategoryConflict, "journal: fiscal period does not accept postings")
	// ErrInvalidStatus indicates the entry state forbids the operation.
	ErrInvalidStatus = shared.NewError("INVALID_STATUS", shared.CategoryConflict, "journal: entry status does not allow this operation")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = shared.NewError("JOURNAL_ALREADY_REVERSED", shared.CategoryConflict, "journal: entry already reversed")
	// ErrSourceAlreadyLinked indicates the source document was posted before.
	ErrSourceAlreadyLinked = shared.NewError("SOURCE_ALREADY_LINKED", shared.CategoryConflict, "journal: source document already linked to an entry")
)

// Validate ensures the create request satisfies double-entry rules: at
// least two lines, exactly one positive side per line, balanced totals.
func (in CreateInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return shared.Invalidf("journal: tenant required")
	}
	if in.EntryDate.IsZero() {
		return shared.Invalidf("journal: entry date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.Invalidf("journal: line %d missing account", idx+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.Invalidf("journal: line %d negative amount", idx+1)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return shared.Invalidf("journal: line %d cannot be both debit and credit", idx+1)
		}
		if line.Debit.IsZero() && line.Credit.IsZero() {
			return shared.Invalidf("journal: line %d requires a debit or credit amount", idx+1)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	if !debit.IsPositive() {
		return ErrUnbalanced
	}
	return nil
}

// Totals sums the line amounts.
func (in CreateInput) Totals() (debit, credit decimal.Decimal) {
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// reverseLines swaps debit and credit on every line.
func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func reversalDescription(reason, number string) string {
	if reason != "" {
		return reason
	}
	return fmt.Sprintf("Reversal of %s", number)
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Covers reports whether the period window contains the date.
func (p Period) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(p.StartDate)) && !d.After(DateOnly(p.EndDate))
}
