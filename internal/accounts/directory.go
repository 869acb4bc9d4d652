package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory reads chart of accounts rows scoped to a tenant.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory constructs a Directory.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

const accountColumns = `id, tenant_id, code, name, type, normal_balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// List returns all accounts for the tenant ordered by code.
func (d *Directory) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Get returns one account by id.
func (d *Directory) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	a, err := scanAccount(d.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// GetMany resolves a set of account ids in one round trip. Missing ids are
// simply absent from the result map.
func (d *Directory) GetMany(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := d.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}
