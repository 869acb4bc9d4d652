package tenant

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubSettingsRepo struct {
	settings Settings
	calls    int
}

func (r *stubSettingsRepo) GetSettings(ctx context.Context, tenantID uuid.UUID) (Settings, error) {
	r.calls++
	return r.settings, nil
}

func newTestStore(t *testing.T, repo Repository) (*Store, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(repo, client, time.Minute), client
}

func TestSettingsCachesAfterFirstLoad(t *testing.T) {
	repo := &stubSettingsRepo{settings: Settings{StrictPeriodLocking: true, RequireClosingNotes: true}}
	store, _ := newTestStore(t, repo)
	tenantID := uuid.New()

	first, err := store.Settings(context.Background(), tenantID)
	require.NoError(t, err)
	require.True(t, first.StrictPeriodLocking)
	require.True(t, first.RequireClosingNotes)
	require.False(t, first.AllowPeriodReopen)
	require.Equal(t, 1, repo.calls)

	second, err := store.Settings(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.calls, "second read must come from cache")
}

func TestSettingsInvalidateForcesReload(t *testing.T) {
	repo := &stubSettingsRepo{settings: Settings{AllowPeriodReopen: true}}
	store, _ := newTestStore(t, repo)
	tenantID := uuid.New()

	_, err := store.Settings(context.Background(), tenantID)
	require.NoError(t, err)

	repo.settings.AllowPeriodReopen = false
	require.NoError(t, store.Invalidate(context.Background(), tenantID))

	reloaded, err := store.Settings(context.Background(), tenantID)
	require.NoError(t, err)
	require.False(t, reloaded.AllowPeriodReopen)
	require.Equal(t, 2, repo.calls)
}

func TestSettingsWithoutRedisPassesThrough(t *testing.T) {
	repo := &stubSettingsRepo{}
	store := NewStore(repo, nil, time.Minute)
	tenantID := uuid.New()

	_, err := store.Settings(context.Background(), tenantID)
	require.NoError(t, err)
	_, err = store.Settings(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestSettingsRequiresTenant(t *testing.T) {
	store := NewStore(&stubSettingsRepo{}, nil, time.Minute)
	_, err := store.Settings(context.Background(), uuid.Nil)
	require.Error(t, err)
}
