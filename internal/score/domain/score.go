package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
)

// Estados posibles de un score.
const (
	StatusProcessing = "PROCESSING"
	StatusDone       = "DONE"
	StatusError      = "ERROR"
)

// ActionScoreUpdate es la acción de los eventos de histórico que registran
// un cambio de score.
const ActionScoreUpdate = "SCU"

// Score es el último score conocido de una dirección en una comunidad.
type Score struct {
	ID                 int64                  `json:"id"`
	CommunityID        int64                  `json:"community_id"`
	Address            string                 `json:"address"`
	Score              decimal.Decimal        `json:"score"`
	Status             string                 `json:"status"`
	LastScoreTimestamp time.Time              `json:"last_score_timestamp"`
	Evidence           map[string]interface{} `json:"evidence,omitempty"`
	Error              *string                `json:"error,omitempty"`
}

// FieldValue expone los campos por los que se filtra y ordena.
func (s *Score) FieldValue(field string) (interface{}, bool) {
	switch field {
	case "id":
		return s.ID, true
	case "community_id":
		return s.CommunityID, true
	case "address":
		return s.Address, true
	case "score":
		return s.Score, true
	case "status":
		return s.Status, true
	case "last_score_timestamp":
		return s.LastScoreTimestamp, true
	}
	return nil, false
}

// ScoreEvent es una entrada del histórico de scores. Es inmutable.
type ScoreEvent struct {
	ID          int64                  `json:"id"`
	CommunityID int64                  `json:"community_id"`
	Address     string                 `json:"address"`
	Action      string                 `json:"action"`
	Score       decimal.Decimal        `json:"score"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (e *ScoreEvent) FieldValue(field string) (interface{}, bool) {
	switch field {
	case "id":
		return e.ID, true
	case "community_id":
		return e.CommunityID, true
	case "address":
		return e.Address, true
	case "action":
		return e.Action, true
	case "score":
		return e.Score, true
	case "created_at":
		return e.CreatedAt, true
	}
	return nil, false
}

// Community (scorer) agrupa scores y pertenece a una cuenta.
type Community struct {
	ID        int64      `json:"id"`
	AccountID int64      `json:"account_id"`
	Name      string     `json:"name"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// OwnedBy indica si la cuenta puede leer la comunidad.
func (c *Community) OwnedBy(accountID int64) bool {
	return c.DeletedAt == nil && c.AccountID == accountID
}

// ScoreUpdate es la entrada del camino de escritura.
type ScoreUpdate struct {
	CommunityID int64
	Address     string
	Score       decimal.Decimal
	Status      string
	Evidence    map[string]interface{}
	Error       *string
	Timestamp   time.Time
}

// NormalizeAddress deja las direcciones en minúsculas y sin espacios.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Verificación estática
var (
	_ paging.Record = (*Score)(nil)
	_ paging.Record = (*ScoreEvent)(nil)
)
