package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/scoreregistry/internal/score/domain"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/db/sqlstore"
	"github.com/davicafu/scoreregistry/internal/shared/infra/platform/db/sqldb"
)

const eventsTable = "score_events_log"

// readTable lee con FINAL: ReplacingMergeTree solo elimina los duplicados al
// fusionar partes, y sin FINAL una reentrega del outbox repetiría el id.
const readTable = eventsTable + " FINAL"

// ScoreAnalyticsRepo es la réplica analítica del histórico de scores. Recibe
// los eventos por lotes (LogBatch) y sirve las mismas lecturas paginadas que
// el almacén principal (HISTORY_SOURCE=clickhouse).
type ScoreAnalyticsRepo struct {
	*sqlstore.EventRepo
	db *sql.DB
}

// NewScoreAnalyticsRepo abre la conexión con ClickHouse.
func NewScoreAnalyticsRepo(addr string, dbName string) (*ScoreAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return NewScoreAnalyticsRepoFromDB(conn), nil
}

// NewScoreAnalyticsRepoFromDB reutiliza una conexión ya abierta.
func NewScoreAnalyticsRepoFromDB(db *sql.DB) *ScoreAnalyticsRepo {
	return &ScoreAnalyticsRepo{
		EventRepo: sqlstore.NewEventRepoForTable(db, sqldb.ClickHouse, readTable),
		db:        db,
	}
}

// LogBatch inserta un lote de eventos. ClickHouse funciona mejor con
// inserciones en lotes: si un registro falla se descarta el lote entero.
func (r *ScoreAnalyticsRepo) LogBatch(ctx context.Context, events []*domain.ScoreEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Se ignora si el Commit() es exitoso

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+eventsTable+" (id, community_id, address, action, score, evidence, created_at)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, evt := range events {
		evidence, err := evidenceJSON(evt.Evidence)
		if err != nil {
			return fmt.Errorf("event %d: %w", evt.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			evt.ID,
			evt.CommunityID,
			evt.Address,
			evt.Action,
			evt.Score.String(),
			evidence,
			evt.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("failed to exec statement for score event %d: %w", evt.ID, err)
		}
	}
	return tx.Commit()
}

// InitSchema crea la tabla si no existe. ReplacingMergeTree descarta en
// segundo plano los eventos duplicados por id que deja una reentrega del
// outbox; las lecturas usan FINAL hasta que la fusión ocurre.
func (r *ScoreAnalyticsRepo) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + eventsTable + ` (
			id           Int64,
			community_id Int64,
			address      String,
			action       String,
			score        String,
			evidence     String,
			created_at   DateTime64(9, 'UTC')
		) ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (community_id, id)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func evidenceJSON(evidence map[string]interface{}) (string, error) {
	if evidence == nil {
		return "", nil
	}
	b, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("failed to marshal evidence: %w", err)
	}
	return string(b), nil
}

// Verificación estática de la interfaz.
var (
	_ domain.ScoreAnalyticsRepository = (*ScoreAnalyticsRepo)(nil)
	_ domain.EventRepository          = (*ScoreAnalyticsRepo)(nil)
)
