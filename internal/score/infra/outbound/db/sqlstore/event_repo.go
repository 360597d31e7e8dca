package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// EventRepo implementa domain.EventRepository (histórico de scores).
// También sirve para ClickHouse con sqldb.ClickHouse: solo usa SQL común.
type EventRepo struct {
	db    *sql.DB
	d     sqldb.Dialect
	table string
}

func NewEventRepo(db *sql.DB, d sqldb.Dialect) *EventRepo {
	return NewEventRepoForTable(db, d, "score_events")
}

// NewEventRepoForTable permite leer el histórico de otra tabla con las mismas
// columnas. table se inserta tal cual tras FROM, así que admite modificadores
// como "t FINAL"; nunca debe venir de la petición.
func NewEventRepoForTable(db *sql.DB, d sqldb.Dialect, table string) *EventRepo {
	return &EventRepo{db: db, d: d, table: table}
}

func (r *EventRepo) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	sqlStr, args, err := sqldb.Select(r.d, eventColumns, r.table, q)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, sqlStr, args)
}

func (r *EventRepo) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	sqlStr, args, err := sqldb.Exists(r.d, r.table, filter)
	if err != nil {
		return false, err
	}
	return exists(ctx, r.db, sqlStr, args)
}

// LatestAt devuelve el último cambio de score de la dirección hasta at (incluido).
func (r *EventRepo) LatestAt(ctx context.Context, communityID int64, address string, at time.Time) (*domain.ScoreEvent, error) {
	items, err := r.Find(ctx, query.Query{
		Filter: sharedDomain.And(
			domain.CommunityCriteria{ID: communityID},
			domain.AddressCriteria{Address: address},
			domain.ActionCriteria{Action: domain.ActionScoreUpdate},
			domain.CreatedAtUntilCriteria{At: at},
		),
		OrderBy: query.SortSpec{query.Desc("created_at"), query.Desc("id")},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrScoreNotFound
	}
	return items[0], nil
}

// Snapshot devuelve la vista "último evento por dirección hasta at".
func (r *EventRepo) Snapshot(at time.Time) paging.Source[*domain.ScoreEvent] {
	return &snapshot{repo: r, at: at}
}

func (r *EventRepo) query(ctx context.Context, sqlStr string, args []interface{}) ([]*domain.ScoreEvent, error) {
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAll(rows, scanEvent)
}

// ------------------ Snapshot ------------------

// snapshot numera los eventos de cada (comunidad, dirección) del más reciente
// al más antiguo y se queda con el primero. Los filtros recibidos solo usan
// columnas constantes dentro de cada partición (comunidad, dirección, acción),
// así que se aplican dentro de la subconsulta y aprovechan los índices.
type snapshot struct {
	repo *EventRepo
	at   time.Time
}

func (s *snapshot) from(filter sharedDomain.Criteria) (string, []interface{}, error) {
	where, args, err := sqldb.Where(sharedDomain.And(domain.CreatedAtUntilCriteria{At: s.at}, filter), s.repo.d)
	if err != nil {
		return "", nil, err
	}
	return `(SELECT ` + eventColumns + `,
	        ROW_NUMBER() OVER (PARTITION BY community_id, address ORDER BY created_at DESC, id DESC) AS rn
	    FROM ` + s.repo.table + `
	    WHERE ` + where + `) latest`, args, nil
}

func (s *snapshot) Find(ctx context.Context, q query.Query) ([]*domain.ScoreEvent, error) {
	from, fromArgs, err := s.from(q.Filter)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := sqldb.Select(s.repo.d, eventColumns, from, query.Query{
		Filter:  sharedDomain.Eq("rn", 1),
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.query(ctx, sqlStr, append(fromArgs, args...))
}

func (s *snapshot) Exists(ctx context.Context, filter sharedDomain.Criteria) (bool, error) {
	from, fromArgs, err := s.from(filter)
	if err != nil {
		return false, err
	}
	sqlStr, args, err := sqldb.Exists(s.repo.d, from, sharedDomain.Eq("rn", 1))
	if err != nil {
		return false, err
	}
	return exists(ctx, s.repo.db, sqlStr, append(fromArgs, args...))
}

// Verificación en tiempo de compilación.
var _ domain.EventRepository = (*EventRepo)(nil)
