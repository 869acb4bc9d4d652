package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/shared"
	"github.com/solvent-hq/solvent/internal/tenant"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// DirectoryPort resolves chart of accounts entries.
type DirectoryPort interface {
	GetMany(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]accounts.Account, error)
}

// SettingsPort reads tenant configuration.
type SettingsPort interface {
	Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error)
}

// AuditPort records journal events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates creating, posting, reversing, and deleting journal
// entries.
type Service struct {
	repo      RepositoryPort
	directory DirectoryPort
	settings  SettingsPort
	audit     AuditPort
	now       func() time.Time
}

// NewService constructs the journal service.
func NewService(repo RepositoryPort, directory DirectoryPort, settings SettingsPort, audit AuditPort) *Service {
	return &Service{repo: repo, directory: directory, settings: settings, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and persists a journal entry. The entry posts in the
// same transaction unless the caller asked for a draft or the tenant
// requires approval before posting. Drafts may target any period; posting
// requires the period to be open.
func (s *Service) Create(ctx context.Context, in CreateInput) (JournalEntry, error) {
	if in.SourceType == "" {
		in.SourceType = SourceManual
	}
	in.EntryDate = DateOnly(in.EntryDate)
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.checkAccounts(ctx, in.TenantID, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	settings, err := s.settings.Settings(ctx, in.TenantID)
	if err != nil {
		return JournalEntry{}, err
	}
	status := StatusDraft
	if !in.SaveAsDraft && !settings.JournalApprovalRequired {
		status = StatusPosted
	}
	debit, credit := in.Totals()

	var entry JournalEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var period Period
		var err error
		if status == StatusPosted {
			period, err = tx.LockPeriodByDate(ctx, in.TenantID, in.EntryDate)
		} else {
			period, err = tx.GetPeriodByDate(ctx, in.TenantID, in.EntryDate)
		}
		if err != nil {
			return err
		}
		if status == StatusPosted && period.Status != PeriodStatusOpen {
			return ErrPeriodLocked
		}
		insert := InsertEntryInput{
			TenantID:    in.TenantID,
			EntryDate:   in.EntryDate,
			Description: in.Description,
			SourceType:  in.SourceType,
			SourceID:    in.SourceID,
			SourceRef:   in.SourceRef,
			PeriodID:    period.ID,
			Status:      status,
			TotalDebit:  debit,
			TotalCredit: credit,
			CreatedBy:   in.ActorID,
		}
		if status == StatusPosted {
			now := s.now()
			insert.PostedBy = &in.ActorID
			insert.PostedAt = &now
		}
		inserted, err := tx.InsertEntry(ctx, insert)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, in.TenantID, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "journal.create", entry.ID, map[string]any{
		"number": entry.EntryNumber,
		"status": string(entry.Status),
		"source": entry.SourceType,
	})
	return entry, nil
}

// Post flips a draft entry to posted, re-checking inside the transaction
// that its period is still open and its lines still balance.
func (s *Service) Post(ctx context.Context, tenantID uuid.UUID, entryID int64, actorID uuid.UUID) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, shared.Invalidf("journal: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidStatus
		}
		period, err := tx.GetPeriodForUpdate(ctx, tenantID, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status != PeriodStatusOpen {
			return ErrPeriodLocked
		}
		var debit, credit decimal.Decimal
		for _, line := range lines {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
		if !debit.Equal(credit) || !debit.IsPositive() {
			return ErrUnbalanced
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, tenantID, current.ID, actorID, now); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PostedBy = &actorID
		current.PostedAt = &now
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, tenantID, actorID, "journal.post", entry.ID, map[string]any{
		"number": entry.EntryNumber,
	})
	return entry, nil
}

// Reverse creates a posted entry with debit and credit swapped, dated at
// the reversal date, linked both ways to the original. A posted entry can
// be reversed exactly once; the reversal's period must be open while the
// original's period status is irrelevant.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, shared.Invalidf("journal: entry id required")
	}
	if in.ReversalDate.IsZero() {
		return JournalEntry{}, shared.Invalidf("journal: reversal date required")
	}
	in.ReversalDate = DateOnly(in.ReversalDate)
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, lines, err := tx.GetEntryForUpdate(ctx, in.TenantID, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status == StatusReversed || original.ReversedBy != nil {
			return ErrAlreadyReversed
		}
		if original.Status != StatusPosted {
			return ErrInvalidStatus
		}
		period, err := tx.LockPeriodByDate(ctx, in.TenantID, in.ReversalDate)
		if err != nil {
			return err
		}
		if period.Status != PeriodStatusOpen {
			return ErrPeriodLocked
		}
		now := s.now()
		insert := InsertEntryInput{
			TenantID:    in.TenantID,
			EntryDate:   in.ReversalDate,
			Description: reversalDescription(in.Reason, original.EntryNumber),
			SourceType:  SourceReversal,
			SourceRef:   original.EntryNumber,
			PeriodID:    period.ID,
			Status:      StatusPosted,
			TotalDebit:  original.TotalCredit,
			TotalCredit: original.TotalDebit,
			ReversalOf:  &original.ID,
			CreatedBy:   in.ActorID,
			PostedBy:    &in.ActorID,
			PostedAt:    &now,
		}
		inserted, err := tx.InsertEntry(ctx, insert)
		if err != nil {
			return err
		}
		insertedLines, err := tx.InsertLines(ctx, in.TenantID, inserted.ID, reverseLines(lines))
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, in.TenantID, original.ID, inserted.ID); err != nil {
			return err
		}
		inserted.Lines = insertedLines
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.TenantID, in.ActorID, "journal.reverse", in.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.EntryNumber,
		"reason":          in.Reason,
	})
	return reversal, nil
}

// Delete removes a draft entry and its lines. Posted and reversed entries
// are immutable.
func (s *Service) Delete(ctx context.Context, tenantID uuid.UUID, entryID int64, actorID uuid.UUID) error {
	if entryID == 0 {
		return shared.Invalidf("journal: entry id required")
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, _, err := tx.GetEntryForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrInvalidStatus
		}
		number = current.EntryNumber
		return tx.DeleteEntry(ctx, tenantID, current.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenantID, actorID, "journal.delete", entryID, map[string]any{
		"number": number,
	})
	return nil
}

// Get returns one entry with lines.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntry(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	return entry, err
}

// GetByNumber returns one entry by its human readable number.
func (s *Service) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryByNumber(ctx, tenantID, number)
		if err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	return entry, err
}

// GetBySource resolves the entry generated from an external document.
func (s *Service) GetBySource(ctx context.Context, tenantID uuid.UUID, sourceType string, sourceID uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetEntryBySource(ctx, tenantID, sourceType, sourceID)
		if err != nil {
			return err
		}
		current.Lines = lines
		entry = current
		return nil
	})
	return entry, err
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]JournalEntry, shared.Pagination, error) {
	var entries []JournalEntry
	var total int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, total, err = tx.ListEntries(ctx, tenantID, filter)
		return err
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) checkAccounts(ctx context.Context, tenantID uuid.UUID, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	resolved, err := s.directory.GetMany(ctx, tenantID, ids)
	if err != nil {
		return err
	}
	for idx, line := range lines {
		account, ok := resolved[line.AccountID]
		if !ok {
			return shared.Invalidf("journal: line %d references unknown account %d", idx+1, line.AccountID)
		}
		if !account.Active {
			return shared.Invalidf("journal: line %d references inactive account %s", idx+1, account.Code)
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, tenantID, actorID uuid.UUID, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}
