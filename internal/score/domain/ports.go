package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
)

// ---------- Errores de dominio ----------
var (
	ErrNotFound          = errors.New("not found")
	ErrCommunityNotFound = fmt.Errorf("community %w", ErrNotFound)
	ErrScoreNotFound     = fmt.Errorf("score %w", ErrNotFound)
	ErrInvalidScore      = errors.New("invalid score")
)

// ---------- Interfaces (Ports) ----------

// ScoreRepository guarda el último score por (comunidad, dirección) y sirve
// como fuente paginable.
type ScoreRepository interface {
	paging.Source[*Score]

	// Save hace upsert del score, añade el evento de histórico y el evento
	// de outbox en una misma transacción. Rellena los IDs generados.
	Save(ctx context.Context, s *Score, evt *ScoreEvent, out sharedDomain.OutboxEvent) error
}

// EventRepository lee el histórico de scores.
type EventRepository interface {
	paging.Source[*ScoreEvent]

	// LatestAt devuelve el último evento de la dirección con created_at <= at.
	// Debe devolver ErrScoreNotFound si no hay ninguno.
	LatestAt(ctx context.Context, communityID int64, address string, at time.Time) (*ScoreEvent, error)

	// Snapshot devuelve una fuente con, por dirección, el último evento con
	// created_at <= at. Los filtros aplicados deben ser constantes por
	// dirección (comunidad, dirección, acción).
	Snapshot(at time.Time) paging.Source[*ScoreEvent]
}

// CommunityRepository. Debe devolver ErrCommunityNotFound si no existe.
type CommunityRepository interface {
	GetByID(ctx context.Context, id int64) (*Community, error)
	Save(ctx context.Context, c *Community) error
}

// ScoreAnalyticsRepository es la réplica analítica del histórico.
type ScoreAnalyticsRepository interface {
	LogBatch(ctx context.Context, events []*ScoreEvent) error
}

// ---------- Helpers comunes (cache keys, etc.) ----------

func CommunityCacheKeyByID(id int64) string {
	return fmt.Sprintf("community:id:%d", id)
}
