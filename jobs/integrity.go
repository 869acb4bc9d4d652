package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/solvent-hq/solvent/internal/jobs"
	"github.com/solvent-hq/solvent/internal/ledger"
	"github.com/solvent-hq/solvent/internal/observability"
)

// BalancePort exposes the ledger summary used by the integrity scan.
type BalancePort interface {
	SummaryByType(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (ledger.Summary, error)
}

// TenantSource lists tenants in scope for a full scan.
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// PGTenantSource finds tenants with journal activity.
type PGTenantSource struct {
	pool *pgxpool.Pool
}

// NewPGTenantSource returns a tenant source backed by Postgres.
func NewPGTenantSource(pool *pgxpool.Pool) *PGTenantSource {
	return &PGTenantSource{pool: pool}
}

// ActiveTenants returns every tenant that has ever booked an entry.
func (s *PGTenantSource) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT tenant_id FROM journal_entries`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("jobs: scan tenant: %w", err)
		}
		tenants = append(tenants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobs: list tenants: %w", err)
	}
	return tenants, nil
}

// IntegrityScanner recomputes the accounting equation for each tenant and
// reports ledgers that have drifted out of balance. Drift is an invariant
// violation of stored data, so a finding never fails the job; only scan
// errors are retried.
type IntegrityScanner struct {
	balances BalancePort
	tenants  TenantSource
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracker  *jobmetrics.Metrics
	now      func() time.Time
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NewIntegrityScanner constructs the scanner.
func NewIntegrityScanner(balances BalancePort, tenants TenantSource, logger *slog.Logger, metrics *observability.Metrics, tracker *jobmetrics.Metrics) *IntegrityScanner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = defaultJobMetrics
	}
	return &IntegrityScanner{
		balances: balances,
		tenants:  tenants,
		logger:   logger,
		metrics:  metrics,
		tracker:  tracker,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *IntegrityScanner) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Handle processes TaskLedgerIntegrityScan tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.tracker.Track("ledger_integrity_scan")
	if payload.TenantID != nil {
		_, err := s.ScanTenant(ctx, *payload.TenantID)
		return tracker.End(err)
	}
	return tracker.End(s.ScanAll(ctx))
}

// ScanAll checks every active tenant.
func (s *IntegrityScanner) ScanAll(ctx context.Context) error {
	tenants, err := s.tenants.ActiveTenants(ctx)
	if err != nil {
		return err
	}
	var drifted int
	for _, tenantID := range tenants {
		balanced, err := s.ScanTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if !balanced {
			drifted++
		}
	}
	s.logger.Info("ledger integrity scan finished",
		slog.Int("tenants", len(tenants)),
		slog.Int("drifted", drifted))
	return nil
}

// ScanTenant checks one tenant and reports whether its books balance.
func (s *IntegrityScanner) ScanTenant(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	summary, err := s.balances.SummaryByType(ctx, tenantID, s.now())
	if err != nil {
		return false, fmt.Errorf("jobs: integrity scan tenant %s: %w", tenantID, err)
	}
	if !summary.Balanced {
		s.logger.Error("accounting equation violated",
			slog.String("tenant_id", tenantID.String()),
			slog.String("difference", summary.Difference.String()))
		s.metrics.IntegrityFailure()
		s.tracker.AddImbalance(tenantID.String())
	}
	return summary.Balanced, nil
}
