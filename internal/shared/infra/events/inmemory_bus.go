package events

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	sharedBus "github.com/davicafu/scoreregistry/internal/shared/infra/platform/bus"
)

// Message es lo que reciben los suscriptores del bus en memoria.
type Message struct {
	Key     string
	Payload []byte
}

// InMemoryEventBus implementa un bus de eventos para UN solo topic. Si el
// buffer de un suscriptor está lleno el mensaje se descarta para él.
type InMemoryEventBus struct {
	subscribers []chan Message
	mu          sync.RWMutex
	topic       string
	log         *zap.Logger
}

// NewInMemoryEventBus crea un bus de eventos para un topic específico.
func NewInMemoryEventBus(topic string, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make([]chan Message, 0),
		topic:       topic,
		log:         log,
	}
}

// Publish serializa el evento y lo envía a todos los suscriptores.
func (b *InMemoryEventBus) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := Message{Payload: payload}
	if keyer, ok := event.(sharedBus.Keyer); ok {
		msg.Key = keyer.PartitionKey()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- msg:
		default:
			b.log.Warn("⚠️ Subscriber buffer full, message dropped", zap.String("topic", b.topic), zap.String("key", msg.Key))
		}
	}
	return nil
}

// Subscribe añade un oyente con el buffer indicado.
func (b *InMemoryEventBus) Subscribe(bufferSize int) <-chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, bufferSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Consume entrega los mensajes de ch al handler hasta que se cancele ctx.
func Consume(ctx context.Context, ch <-chan Message, handler sharedBus.MessageHandler, log *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("In-memory consumer stopped")
				return
			case msg := <-ch:
				handler.HandleMessage(ctx, msg.Key, msg.Payload)
			}
		}
	}()
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ sharedBus.EventBus = (*InMemoryEventBus)(nil)
