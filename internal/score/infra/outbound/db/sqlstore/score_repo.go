package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// ScoreRepo implementa domain.ScoreRepository sobre PostgreSQL o SQLite.
type ScoreRepo struct {
	db *sql.DB
	d  sqldb.Dialect
}

func NewScoreRepo(db *sql.DB, d sqldb.Dialect) *ScoreRepo {
	return &ScoreRepo{db: db, d: d}
}

// ------------------ Lectura ------------------

func (r *ScoreRepo) Find(ctx context.Context, q query.Query) ([]*domain.Score, error) {
	sqlStr, args, err := sqldb.Select(r.d, scoreColumns, "scores", q)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows, scanScore)
}

func (r *ScoreRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	sqlStr, args, err := sqldb.Exists(r.d, "scores", filter)
	if err != nil {
		return false, err
	}
	return exists(ctx, r.db, sqlStr, args)
}

// ------------------ Escritura + Outbox ------------------

// Save hace upsert del score por (comunidad, dirección), añade el evento de
// histórico y el de outbox en una única transacción. Rellena sc.ID y evt.ID.
func (r *ScoreRepo) Save(ctx context.Context, sc *domain.Score, evt *domain.ScoreEvent, out sharedDomain.OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	var one int
	err = tx.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM communities WHERE id = ?`), sc.CommunityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCommunityNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	evidence, err := encodeEvidence(sc.Evidence)
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, r.d.Rebind(
		`INSERT INTO scores (community_id, address, score, status, last_score_timestamp, evidence, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (community_id, address) DO UPDATE SET
		     score = excluded.score,
		     status = excluded.status,
		     last_score_timestamp = excluded.last_score_timestamp,
		     evidence = excluded.evidence,
		     error = excluded.error
		 RETURNING id`),
		sc.CommunityID, sc.Address, r.d.Arg(sc.Score), sc.Status, r.d.Arg(sc.LastScoreTimestamp), evidence, sc.Error,
	).Scan(&sc.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert score: %w", err)
	}

	evidence, err = encodeEvidence(evt.Evidence)
	if err != nil {
		return err
	}
	err = tx.QueryRowContext(ctx, r.d.Rebind(
		`INSERT INTO score_events (community_id, address, action, score, evidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		evt.CommunityID, evt.Address, evt.Action, r.d.Arg(evt.Score), evidence, r.d.Arg(evt.CreatedAt),
	).Scan(&evt.ID)
	if err != nil {
		return fmt.Errorf("failed to insert score event: %w", err)
	}

	// el payload (normalmente evt) ya lleva su id
	if err := sqldb.InsertOutboxTx(ctx, tx, r.d, out); err != nil {
		return err
	}

	return tx.Commit()
}

func exists(ctx context.Context, db *sql.DB, sqlStr string, args []interface{}) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// Verificación en tiempo de compilación.
var _ domain.ScoreRepository = (*ScoreRepo)(nil)
