package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Settings is the kernel-relevant slice of tenant configuration. The
// platform owns the rows; the kernel only reads them.
type Settings struct {
	JournalApprovalRequired bool `json:"journal_approval_required"`
	StrictPeriodLocking     bool `json:"strict_period_locking"`
	AllowPeriodReopen       bool `json:"allow_period_reopen"`
	RequireClosingNotes     bool `json:"require_closing_notes"`
}

// Repository loads settings from the system of record.
type Repository interface {
	GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error)
}

// PGRepository reads tenant_settings rows.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetSettings returns the stored settings. Tenants without a row fall back
// to zero-value defaults.
func (r *PGRepository) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT journal_approval_required, strict_period_locking, allow_period_reopen, require_closing_notes
FROM tenant_settings WHERE tenant_id=$1`, tenantID).
		Scan(&s.JournalApprovalRequired, &s.StrictPeriodLocking, &s.AllowPeriodReopen, &s.RequireClosingNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	return s, nil
}

// Store caches settings lookups in Redis with a short TTL.
type Store struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store. A nil client disables caching.
func NewStore(repo Repository, client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{repo: repo, client: client, ttl: ttl}
}

func settingsKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("tenant:settings:%s", tenantID)
}

// Settings returns the cached settings, loading through on a miss.
func (s *Store) Settings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	if tenantID == uuid.Nil {
		return Settings{}, errors.New("tenant: tenant id required")
	}
	if s.client == nil {
		return s.repo.GetSettings(ctx, tenantID)
	}
	key := settingsKey(tenantID)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Settings
		if jerr := json.Unmarshal(payload, &cached); jerr == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		return Settings{}, err
	}
	loaded, err := s.repo.GetSettings(ctx, tenantID)
	if err != nil {
		return Settings{}, err
	}
	raw, err := json.Marshal(loaded)
	if err != nil {
		return Settings{}, err
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return Settings{}, err
	}
	return loaded, nil
}

// Invalidate drops the cached copy after the platform updates a tenant.
func (s *Store) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, settingsKey(tenantID)).Err()
}
