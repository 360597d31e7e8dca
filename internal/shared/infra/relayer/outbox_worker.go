package relayer

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	sharedEvents "github.com/davicafu/scoreregistry/internal/shared/events"
	sharedBus "github.com/davicafu/scoreregistry/internal/shared/infra/platform/bus"
)

// Worker procesa eventos pendientes del outbox de forma genérica: valida el
// payload contra el tipo registrado, lo envuelve en un IntegrationEvent y lo
// publica. Solo marca como procesado lo que se ha publicado.
type Worker struct {
	repo          sharedDomain.OutboxRepository
	publisher     sharedBus.EventBus
	eventRegistry map[string]sharedEvents.EventMetadata
	interval      time.Duration
	batchSize     int
	log           *zap.Logger
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.EventBus,
	registry map[string]sharedEvents.EventMetadata,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:          repo,
		publisher:     publisher,
		eventRegistry: registry,
		interval:      interval,
		batchSize:     batchSize,
		log:           log,
	}
}

// Start inicia el bucle de polling del worker. Bloquea hasta que se cancele ctx.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de eventos pendientes y devuelve cuántos se
// han marcado como procesados.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	events, err := w.repo.FetchPendingOutbox(ctx, w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener eventos pendientes", zap.Error(err))
		return 0
	}
	if len(events) > 0 {
		w.log.Debug("📬 Eventos pendientes en outbox", zap.Int("count", len(events)))
	}

	done := 0
	for _, evt := range events {
		if w.publishAndMark(ctx, evt) {
			done++
		}
	}
	return done
}

func (w *Worker) publishAndMark(ctx context.Context, evt sharedDomain.OutboxEvent) bool {
	// 1. Validar el payload contra el tipo registrado
	metadata, ok := w.eventRegistry[evt.EventType]
	if !ok {
		w.log.Error("Tipo de evento desconocido en registro", zap.String("event_type", evt.EventType))
		return false
	}

	typed := reflect.New(metadata.Type).Interface()
	payloadBytes, err := json.Marshal(evt.Payload)
	if err == nil {
		err = json.Unmarshal(payloadBytes, typed)
	}
	if err != nil {
		w.log.Error("Error al decodificar payload del evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
		return false
	}
	data, err := json.Marshal(typed)
	if err != nil {
		w.log.Error("Error al serializar el evento", zap.String("event_id", evt.ID.String()), zap.Error(err))
		return false
	}

	// 2. Publicar envuelto en el sobre de integración
	integration := sharedEvents.IntegrationEvent{
		Type:      evt.EventType,
		Timestamp: evt.CreatedAt,
		Data:      data,
		Key:       evt.PartitionKey(),
	}
	if err := w.publisher.Publish(ctx, integration); err != nil {
		w.log.Warn("⚠️ No se pudo publicar evento",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return false // se reintenta en el siguiente ciclo
	}

	// 3. Marcar como procesado
	if err := w.repo.MarkOutboxProcessed(ctx, evt.ID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar evento como procesado",
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
		return false
	}
	w.log.Debug("✅ Evento publicado y marcado", zap.String("event_id", evt.ID.String()))
	return true
}
