package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
)

type CommunityRepo struct {
	db *sql.DB
	d  sqldb.Dialect
}

func NewCommunityRepo(db *sql.DB, d sqldb.Dialect) *CommunityRepo {
	return &CommunityRepo{db: db, d: d}
}

func (r *CommunityRepo) GetByID(ctx context.Context, id int64) (*domain.Community, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(
		`SELECT id, account_id, name, deleted_at FROM communities WHERE id = ?`), id)

	var c domain.Community
	if err := row.Scan(&c.ID, &c.AccountID, &c.Name, sqldb.ScanNullTime(&c.DeletedAt)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCommunityNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &c, nil
}

// Save crea o actualiza la comunidad.
func (r *CommunityRepo) Save(ctx context.Context, c *domain.Community) error {
	if c.ID <= 0 {
		return fmt.Errorf("community id must be positive, got %d", c.ID)
	}
	_, err := r.db.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO communities (id, account_id, name, deleted_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     account_id = excluded.account_id,
		     name = excluded.name,
		     deleted_at = excluded.deleted_at`),
		c.ID, c.AccountID, c.Name, r.d.Arg(c.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save community %d: %w", c.ID, err)
	}
	return nil
}

var _ domain.CommunityRepository = (*CommunityRepo)(nil)
