package fiscal

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/ledger"
	"github.com/solvent-hq/solvent/internal/shared"
	"github.com/solvent-hq/solvent/internal/tenant"
)

var (
	testTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testActor  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type memoryFiscalRepo struct {
	years        map[int64]*FiscalYear
	periods      map[int64]*FiscalPeriod
	snapshots    map[int64]*TrialBalanceSnapshot
	drafts       map[int64][]string
	nextYearID   int64
	nextPeriodID int64
	nextSnapID   int64
}

func newMemoryFiscalRepo() *memoryFiscalRepo {
	return &memoryFiscalRepo{
		years:     make(map[int64]*FiscalYear),
		periods:   make(map[int64]*FiscalPeriod),
		snapshots: make(map[int64]*TrialBalanceSnapshot),
		drafts:    make(map[int64][]string),
	}
}

func (r *memoryFiscalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryFiscalRepo) HasOverlappingYear(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error) {
	for _, y := range r.years {
		if y.TenantID != tenantID {
			continue
		}
		if !y.StartDate.After(end) && !y.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryFiscalRepo) InsertFiscalYear(ctx context.Context, in InsertFiscalYearInput) (FiscalYear, error) {
	r.nextYearID++
	now := time.Now()
	year := FiscalYear{
		ID:        r.nextYearID,
		TenantID:  in.TenantID,
		Name:      in.Name,
		Year:      in.Year,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    shared.PeriodStatusOpen,
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored := year
	r.years[year.ID] = &stored
	return year, nil
}

func (r *memoryFiscalRepo) InsertPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64, windows []PeriodWindow) ([]FiscalPeriod, error) {
	out := make([]FiscalPeriod, 0, len(windows))
	for _, w := range windows {
		r.nextPeriodID++
		now := time.Now()
		p := FiscalPeriod{
			ID:           r.nextPeriodID,
			TenantID:     tenantID,
			FiscalYearID: yearID,
			PeriodNo:     w.PeriodNo,
			Name:         w.Name,
			StartDate:    w.StartDate,
			EndDate:      w.EndDate,
			Status:       shared.PeriodStatusOpen,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		stored := p
		r.periods[p.ID] = &stored
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryFiscalRepo) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error) {
	p, ok := r.periods[periodID]
	if !ok || p.TenantID != tenantID {
		return FiscalPeriod{}, ErrPeriodNotFound
	}
	return *p, nil
}

func (r *memoryFiscalRepo) CountOpenEarlierPeriods(ctx context.Context, tenantID uuid.UUID, before time.Time) (int, error) {
	count := 0
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.Status == shared.PeriodStatusOpen && p.StartDate.Before(before) {
			count++
		}
	}
	return count, nil
}

func (r *memoryFiscalRepo) ListDraftJournals(ctx context.Context, tenantID uuid.UUID, periodID int64) ([]string, error) {
	return r.drafts[periodID], nil
}

func (r *memoryFiscalRepo) UpsertSnapshot(ctx context.Context, snap TrialBalanceSnapshot) (TrialBalanceSnapshot, error) {
	if existing, ok := r.snapshots[snap.PeriodID]; ok {
		snap.ID = existing.ID
	} else {
		r.nextSnapID++
		snap.ID = r.nextSnapID
	}
	snap.CreatedAt = time.Now()
	stored := snap
	r.snapshots[snap.PeriodID] = &stored
	return snap, nil
}

func (r *memoryFiscalRepo) MarkPeriodClosed(ctx context.Context, tenantID uuid.UUID, periodID int64, closedBy uuid.UUID, at time.Time, notes string) error {
	p, ok := r.periods[periodID]
	if !ok || p.TenantID != tenantID {
		return ErrPeriodNotFound
	}
	p.Status = shared.PeriodStatusClosed
	p.ClosedAt = &at
	p.ClosedBy = &closedBy
	p.ClosingNotes = notes
	return nil
}

func (r *memoryFiscalRepo) MarkPeriodReopened(ctx context.Context, tenantID uuid.UUID, periodID int64, reopenedBy uuid.UUID, at time.Time, reason string) error {
	p, ok := r.periods[periodID]
	if !ok || p.TenantID != tenantID {
		return ErrPeriodNotFound
	}
	p.Status = shared.PeriodStatusOpen
	p.ClosedAt = nil
	p.ClosedBy = nil
	p.ClosingNotes = ""
	p.ReopenedAt = &at
	p.ReopenedBy = &reopenedBy
	p.ReopenReason = reason
	return nil
}

func (r *memoryFiscalRepo) MarkPeriodLocked(ctx context.Context, tenantID uuid.UUID, periodID int64, lockedBy uuid.UUID, at time.Time) error {
	p, ok := r.periods[periodID]
	if !ok || p.TenantID != tenantID {
		return ErrPeriodNotFound
	}
	p.Status = shared.PeriodStatusLocked
	p.LockedAt = &at
	p.LockedBy = &lockedBy
	return nil
}

func (r *memoryFiscalRepo) GetFiscalYearForUpdate(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error) {
	y, ok := r.years[yearID]
	if !ok || y.TenantID != tenantID {
		return FiscalYear{}, ErrFiscalYearNotFound
	}
	return *y, nil
}

func (r *memoryFiscalRepo) CountUnclosedPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) (int, error) {
	count := 0
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.FiscalYearID == yearID && p.Status == shared.PeriodStatusOpen {
			count++
		}
	}
	return count, nil
}

func (r *memoryFiscalRepo) MarkYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, closedBy uuid.UUID, at time.Time) error {
	y, ok := r.years[yearID]
	if !ok || y.TenantID != tenantID {
		return ErrFiscalYearNotFound
	}
	y.Status = shared.PeriodStatusClosed
	y.ClosedAt = &at
	y.ClosedBy = &closedBy
	return nil
}

func (r *memoryFiscalRepo) GetFiscalYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (FiscalYear, error) {
	return r.GetFiscalYearForUpdate(ctx, tenantID, yearID)
}

func (r *memoryFiscalRepo) ListFiscalYears(ctx context.Context, tenantID uuid.UUID) ([]FiscalYear, error) {
	var out []FiscalYear
	for _, y := range r.years {
		if y.TenantID == tenantID {
			out = append(out, *y)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out, nil
}

func (r *memoryFiscalRepo) ListPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64) ([]FiscalPeriod, error) {
	var out []FiscalPeriod
	for _, p := range r.periods {
		if p.TenantID == tenantID && p.FiscalYearID == yearID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodNo < out[j].PeriodNo })
	return out, nil
}

func (r *memoryFiscalRepo) GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (FiscalPeriod, error) {
	return r.GetPeriodForUpdate(ctx, tenantID, periodID)
}

func (r *memoryFiscalRepo) GetPeriodByDate(ctx context.Context, tenantID uuid.UUID, date time.Time) (FiscalPeriod, error) {
	for _, p := range r.periods {
		if p.TenantID == tenantID && !date.Before(p.StartDate) && !date.After(p.EndDate) {
			return *p, nil
		}
	}
	return FiscalPeriod{}, ErrPeriodNotFound
}

func (r *memoryFiscalRepo) GetSnapshot(ctx context.Context, tenantID uuid.UUID, periodID int64, snapshotType string) (TrialBalanceSnapshot, error) {
	s, ok := r.snapshots[periodID]
	if !ok || s.TenantID != tenantID || s.SnapshotType != snapshotType {
		return TrialBalanceSnapshot{}, ErrSnapshotNotFound
	}
	return *s, nil
}

type stubBalances struct {
	rows     []ledger.TrialBalanceRow
	err      error
	lastAsOf time.Time
}

func (b *stubBalances) TrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]ledger.TrialBalanceRow, error) {
	b.lastAsOf = asOf
	if b.err != nil {
		return nil, b.err
	}
	return b.rows, nil
}

type stubSettings struct {
	settings tenant.Settings
}

func (s *stubSettings) Settings(ctx context.Context, tenantID uuid.UUID) (tenant.Settings, error) {
	return s.settings, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService() (*Service, *memoryFiscalRepo, *stubBalances, *stubSettings, *recordingAudit) {
	repo := newMemoryFiscalRepo()
	balances := &stubBalances{rows: balancedRows()}
	settings := &stubSettings{}
	audit := &recordingAudit{}
	svc := NewService(repo, balances, settings, audit)
	return svc, repo, balances, settings, audit
}

func seedYear(t *testing.T, svc *Service) FiscalYear {
	t.Helper()
	year, err := svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{
		TenantID:   testTenant,
		Name:       "FY 2026",
		Year:       2026,
		StartMonth: time.January,
		ActorID:    testActor,
	})
	require.NoError(t, err)
	return year
}

func closePeriods(t *testing.T, svc *Service, year FiscalYear, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
			TenantID: testTenant,
			PeriodID: year.Periods[i].ID,
			ActorID:  testActor,
		})
		require.NoError(t, err)
	}
}

func TestCreateFiscalYearBuildsTwelveOpenPeriods(t *testing.T) {
	svc, _, _, _, audit := newTestService()

	year := seedYear(t, svc)
	require.Equal(t, shared.PeriodStatusOpen, year.Status)
	require.Len(t, year.Periods, 12)
	for i, p := range year.Periods {
		require.Equal(t, i+1, p.PeriodNo)
		require.Equal(t, shared.PeriodStatusOpen, p.Status)
	}
	require.True(t, year.Periods[0].StartDate.Equal(day(2026, 1, 1)))
	require.True(t, year.Periods[11].EndDate.Equal(day(2026, 12, 31)))
	require.Len(t, audit.logs, 1)
	require.Equal(t, "fiscal.year.create", audit.logs[0].Action)
}

func TestCreateFiscalYearRejectsOverlap(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	seedYear(t, svc)

	_, err := svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{
		TenantID:   testTenant,
		Name:       "FY 2026/27",
		Year:       2026,
		StartMonth: time.July,
		ActorID:    testActor,
	})
	require.ErrorIs(t, err, ErrFiscalYearOverlap)

	_, err = svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{
		TenantID:   testTenant,
		Name:       "FY 2027",
		Year:       2027,
		StartMonth: time.January,
		ActorID:    testActor,
	})
	require.NoError(t, err)
}

func TestCreateFiscalYearOverlapIsPerTenant(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	seedYear(t, svc)

	other := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	_, err := svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{
		TenantID:   other,
		Name:       "FY 2026",
		Year:       2026,
		StartMonth: time.January,
		ActorID:    testActor,
	})
	require.NoError(t, err)
}

func TestClosePeriodCapturesSnapshot(t *testing.T) {
	svc, repo, balances, _, audit := newTestService()
	year := seedYear(t, svc)
	first := year.Periods[0]

	period, snapshot, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: first.ID,
		Notes:    "january close",
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusClosed, period.Status)
	require.NotNil(t, period.ClosedAt)
	require.Equal(t, "january close", period.ClosingNotes)
	require.True(t, balances.lastAsOf.Equal(first.EndDate))
	require.Equal(t, SnapshotTypeClosing, snapshot.SnapshotType)
	require.True(t, snapshot.Balanced)
	require.True(t, snapshot.TotalDebit.Equal(decimal.NewFromInt(500)))
	require.True(t, snapshot.TotalCredit.Equal(decimal.NewFromInt(500)))
	require.NotEmpty(t, snapshot.Checksum)
	require.Len(t, snapshot.Lines, 2)
	require.NotNil(t, repo.snapshots[first.ID])
	require.Equal(t, "fiscal.period.close", audit.logs[len(audit.logs)-1].Action)
}

func TestClosePeriodZeroActivity(t *testing.T) {
	svc, _, balances, _, _ := newTestService()
	balances.rows = nil
	year := seedYear(t, svc)

	_, snapshot, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.True(t, snapshot.Balanced)
	require.True(t, snapshot.TotalDebit.IsZero())
	require.True(t, snapshot.TotalCredit.IsZero())
	require.Empty(t, snapshot.Lines)
}

func TestClosePeriodNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	seedYear(t, svc)

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: 999,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodNotFound)
}

func TestClosePeriodAlreadyClosed(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodAlreadyClosed)
}

func TestClosePeriodRequiresSequentialOrder(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[1].ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPreviousPeriodOpen)

	closePeriods(t, svc, year, 1)
	_, _, err = svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[1].ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)
}

func TestClosePeriodLockedIsTerminal(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	_, err := svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "statutory freeze",
		ActorID:  testActor,
	})
	require.NoError(t, err)

	_, _, err = svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodLocked)
}

func TestClosePeriodStrictDraftsBlock(t *testing.T) {
	svc, repo, _, settings, _ := newTestService()
	settings.settings.StrictPeriodLocking = true
	year := seedYear(t, svc)
	repo.drafts[year.Periods[0].ID] = []string{"JE-2026-0007", "JE-2026-0009"}

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Force:    true,
		ActorID:  testActor,
	})
	var drafts *DraftJournalsError
	require.ErrorAs(t, err, &drafts)
	require.True(t, drafts.Blocking)
	require.Equal(t, []string{"JE-2026-0007", "JE-2026-0009"}, drafts.Drafts)
	require.Equal(t, shared.PeriodStatusOpen, repo.periods[year.Periods[0].ID].Status)
}

func TestClosePeriodLenientDraftsWarnUnlessForced(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	year := seedYear(t, svc)
	repo.drafts[year.Periods[0].ID] = []string{"JE-2026-0011"}

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	var drafts *DraftJournalsError
	require.ErrorAs(t, err, &drafts)
	require.False(t, drafts.Blocking)
	require.Equal(t, []string{"JE-2026-0011"}, drafts.Drafts)

	_, _, err = svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Force:    true,
		ActorID:  testActor,
	})
	require.NoError(t, err)
}

func TestClosePeriodUnbalancedBooksAbort(t *testing.T) {
	svc, repo, balances, _, _ := newTestService()
	balances.rows = []ledger.TrialBalanceRow{
		{AccountID: 1, AccountCode: "1000", AccountName: "Cash", AccountType: accounts.TypeAsset, Debit: decimal.NewFromInt(700), Credit: decimal.Zero},
	}
	year := seedYear(t, svc)

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrSnapshotUnbalanced)
	require.Equal(t, shared.PeriodStatusOpen, repo.periods[year.Periods[0].ID].Status)
	require.Nil(t, repo.snapshots[year.Periods[0].ID])
}

func TestClosePeriodRequiresNotesWhenConfigured(t *testing.T) {
	svc, _, _, settings, _ := newTestService()
	settings.settings.RequireClosingNotes = true
	year := seedYear(t, svc)

	_, _, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Notes:    "   ",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrClosingNotesRequired)

	_, _, err = svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Notes:    "reviewed by controller",
		ActorID:  testActor,
	})
	require.NoError(t, err)
}

func TestReopenPeriodRestoresOpen(t *testing.T) {
	svc, _, _, settings, audit := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)

	period, err := svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "missed accrual",
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusOpen, period.Status)
	require.Nil(t, period.ClosedAt)
	require.Equal(t, "missed accrual", period.ReopenReason)
	require.NotNil(t, period.ReopenedAt)
	require.Equal(t, "fiscal.period.reopen", audit.logs[len(audit.logs)-1].Action)
}

func TestReopenPeriodKeepsSnapshot(t *testing.T) {
	svc, _, _, settings, _ := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)
	first := year.Periods[0].ID

	before, err := svc.GetClosingSnapshot(context.Background(), testTenant, first)
	require.NoError(t, err)

	_, err = svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: first,
		Reason:   "late invoice",
		ActorID:  testActor,
	})
	require.NoError(t, err)

	after, err := svc.GetClosingSnapshot(context.Background(), testTenant, first)
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.Equal(t, before.Checksum, after.Checksum)
}

func TestReopenThenCloseAgainReplacesSnapshot(t *testing.T) {
	svc, _, balances, settings, _ := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)
	first := year.Periods[0].ID

	original, err := svc.GetClosingSnapshot(context.Background(), testTenant, first)
	require.NoError(t, err)

	_, err = svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: first,
		Reason:   "correction",
		ActorID:  testActor,
	})
	require.NoError(t, err)

	balances.rows = []ledger.TrialBalanceRow{
		{AccountID: 1, AccountCode: "1000", AccountName: "Cash", AccountType: accounts.TypeAsset, Debit: decimal.NewFromInt(800), Credit: decimal.Zero},
		{AccountID: 2, AccountCode: "4000", AccountName: "Revenue", AccountType: accounts.TypeIncome, Debit: decimal.Zero, Credit: decimal.NewFromInt(800)},
	}
	_, snapshot, err := svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: testTenant,
		PeriodID: first,
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.Equal(t, original.ID, snapshot.ID)
	require.NotEqual(t, original.Checksum, snapshot.Checksum)
	require.True(t, snapshot.TotalDebit.Equal(decimal.NewFromInt(800)))
}

func TestReopenPeriodDisabledByPolicy(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)

	_, err := svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "audit adjustment",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrReopenDisabled)
}

func TestReopenPeriodRequiresReason(t *testing.T) {
	svc, _, _, settings, _ := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 1)

	_, err := svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "  ",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrReopenReasonRequired)
}

func TestReopenPeriodNeverUnlocks(t *testing.T) {
	svc, _, _, settings, _ := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)

	_, err := svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "legal hold",
		ActorID:  testActor,
	})
	require.NoError(t, err)

	_, err = svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "attempt",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodLocked)
}

func TestReopenPeriodRequiresClosedStatus(t *testing.T) {
	svc, _, _, settings, _ := newTestService()
	settings.settings.AllowPeriodReopen = true
	year := seedYear(t, svc)

	_, err := svc.ReopenPeriod(context.Background(), ReopenPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "not closed yet",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodNotClosed)
}

func TestLockPeriodFromOpenAndClosed(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	locked, err := svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "audit in progress",
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusLocked, locked.Status)
	require.NotNil(t, locked.LockedAt)

	_, err = svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "audit in progress",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodLocked)
}

func TestLockPeriodRequiresReason(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	_, err := svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[0].ID,
		Reason:   "   ",
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrLockReasonRequired)
}

func TestCloseFiscalYearRequiresAllPeriodsDone(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	_, err := svc.CloseFiscalYear(context.Background(), CloseFiscalYearInput{
		TenantID: testTenant,
		YearID:   year.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrFiscalYearNotClosable)

	closePeriods(t, svc, year, 12)
	closed, err := svc.CloseFiscalYear(context.Background(), CloseFiscalYearInput{
		TenantID: testTenant,
		YearID:   year.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)
	require.Equal(t, shared.PeriodStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = svc.CloseFiscalYear(context.Background(), CloseFiscalYearInput{
		TenantID: testTenant,
		YearID:   year.ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrFiscalYearAlreadyClosed)
}

func TestCloseFiscalYearCountsLockedAsDone(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)
	closePeriods(t, svc, year, 11)

	_, err := svc.LockPeriod(context.Background(), LockPeriodInput{
		TenantID: testTenant,
		PeriodID: year.Periods[11].ID,
		Reason:   "year-end freeze",
		ActorID:  testActor,
	})
	require.NoError(t, err)

	_, err = svc.CloseFiscalYear(context.Background(), CloseFiscalYearInput{
		TenantID: testTenant,
		YearID:   year.ID,
		ActorID:  testActor,
	})
	require.NoError(t, err)
}

func TestPeriodForDateFindsContainingWindow(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	period, err := svc.PeriodForDate(context.Background(), testTenant, day(2026, time.March, 15))
	require.NoError(t, err)
	require.Equal(t, year.Periods[2].ID, period.ID)

	_, err = svc.PeriodForDate(context.Background(), testTenant, day(2030, time.March, 15))
	require.ErrorIs(t, err, ErrPeriodNotFound)

	_, err = svc.PeriodForDate(context.Background(), testTenant, time.Time{})
	require.Error(t, err)
}

func TestForeignTenantSeesNothing(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	year := seedYear(t, svc)

	other := uuid.MustParse("99999999-9999-9999-9999-999999999999")
	_, err := svc.GetFiscalYear(context.Background(), other, year.ID)
	require.ErrorIs(t, err, ErrFiscalYearNotFound)

	_, _, err = svc.ClosePeriod(context.Background(), ClosePeriodInput{
		TenantID: other,
		PeriodID: year.Periods[0].ID,
		ActorID:  testActor,
	})
	require.ErrorIs(t, err, ErrPeriodNotFound)

	_, err = svc.PeriodForDate(context.Background(), other, day(2026, time.March, 15))
	require.ErrorIs(t, err, ErrPeriodNotFound)
}
