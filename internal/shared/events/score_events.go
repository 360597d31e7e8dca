package events

import (
	"encoding/json"
	"time"
)

// Estos son contratos de integración, NO entidades del dominio.
// Los produce el servicio de scoring externo.
const ScoreComputedType = "score.computed"

type ScoreComputed struct {
	CommunityID int64           `json:"community_id"`
	Address     string          `json:"address"`
	Score       string          `json:"score"`
	Status      string          `json:"status"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
