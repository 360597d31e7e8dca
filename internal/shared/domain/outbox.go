package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent es un evento de integración guardado en la misma transacción
// que el cambio de estado, pendiente de publicar en el broker.
type OutboxEvent struct {
	ID            uuid.UUID   `json:"id"`
	AggregateType string      `json:"aggregate_type"` // ej. "score"
	AggregateID   string      `json:"aggregate_id"`
	EventType     string      `json:"event_type"` // ej. "score.updated"
	Payload       interface{} `json:"payload"`
	CreatedAt     time.Time   `json:"created_at"`
	Processed     bool        `json:"processed"`
}

// PartitionKey agrupa en la misma partición los eventos de un mismo agregado.
func (e OutboxEvent) PartitionKey() string {
	return e.AggregateType + ":" + e.AggregateID
}

// OutboxRepository es lo único que necesita el relayer de cada almacén.
type OutboxRepository interface {
	FetchPendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uuid.UUID) error
}
