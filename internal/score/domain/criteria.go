package domain

import (
	"time"

	shared "github.com/davicafu/scoreregistry/internal/shared/domain"
)

// --- Criterios específicos para scores e histórico ---

// CommunityCriteria restringe a una comunidad.
type CommunityCriteria struct {
	ID int64
}

func (c CommunityCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "community_id", Op: shared.OpEq, Value: c.ID}}
}

// -----------------------------------------------------------

// AddressCriteria busca por dirección exacta (ya normalizada).
type AddressCriteria struct {
	Address string
}

func (c AddressCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "address", Op: shared.OpEq, Value: NormalizeAddress(c.Address)}}
}

// -----------------------------------------------------------

// LastScoreTimestampCriteria filtra scores por fecha de último cálculo.
// Ambos límites son opcionales.
type LastScoreTimestampCriteria struct {
	Gt  *time.Time
	Gte *time.Time
}

func (c LastScoreTimestampCriteria) ToConditions() []shared.Criterion {
	var conds []shared.Criterion
	if c.Gt != nil {
		conds = append(conds, shared.Criterion{Field: "last_score_timestamp", Op: shared.OpGt, Value: *c.Gt})
	}
	if c.Gte != nil {
		conds = append(conds, shared.Criterion{Field: "last_score_timestamp", Op: shared.OpGte, Value: *c.Gte})
	}
	return conds
}

// -----------------------------------------------------------

// CreatedAtUntilCriteria limita el histórico a eventos anteriores o iguales a At.
type CreatedAtUntilCriteria struct {
	At time.Time
}

func (c CreatedAtUntilCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "created_at", Op: shared.OpLte, Value: c.At}}
}

// -----------------------------------------------------------

// ActionCriteria filtra eventos por acción ("SCU"...).
type ActionCriteria struct {
	Action string
}

func (c ActionCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "action", Op: shared.OpEq, Value: c.Action}}
}
