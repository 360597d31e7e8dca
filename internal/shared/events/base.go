package events

import (
	"encoding/json"
	"reflect"
	"time"
)

// Base de todos los eventos de integración
type IntegrationEvent struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"` // contenido específico del evento
	Key       string          `json:"-"`
}

// PartitionKey permite al publisher de Kafka repartir por agregado.
func (e IntegrationEvent) PartitionKey() string {
	return e.Key
}

// EventMetadata asocia un tipo de evento con su payload y su topic.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}
