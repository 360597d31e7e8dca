package mongodb

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

var ErrUnsupportedCriteria = errors.New("unsupported criteria")

// matchNothing es el filtro de un OR sin ramas.
var matchNothing = bson.D{{Key: "$expr", Value: false}}

// Field traduce el nombre neutral de un campo al del documento.
func Field(name string) string {
	if name == "id" {
		return "_id"
	}
	return name
}

type filterBuilder struct {
	err error
}

// bson.D vacío = sin restricción.
func (b *filterBuilder) Condition(c domain.Criterion) bson.D {
	var op string
	switch c.Op {
	case domain.OpEq:
		op = "$eq"
	case domain.OpNeq:
		op = "$ne"
	case domain.OpGt:
		op = "$gt"
	case domain.OpGte:
		op = "$gte"
	case domain.OpLt:
		op = "$lt"
	case domain.OpLte:
		op = "$lte"
	default:
		if b.err == nil {
			b.err = fmt.Errorf("%w: operator %q", ErrUnsupportedCriteria, c.Op)
		}
		return bson.D{}
	}
	return bson.D{{Key: Field(c.Field), Value: bson.D{{Key: op, Value: Value(c.Value)}}}}
}

func (b *filterBuilder) Group(op domain.LogicalOperator, children []bson.D) bson.D {
	parts := make(bson.A, 0, len(children))
	for _, ch := range children {
		if len(ch) == 0 {
			if op == domain.OpOr {
				return bson.D{}
			}
			continue
		}
		parts = append(parts, ch)
	}

	switch len(parts) {
	case 0:
		if op == domain.OpOr {
			return matchNothing
		}
		return bson.D{}
	case 1:
		return parts[0].(bson.D)
	}
	if op == domain.OpOr {
		return bson.D{{Key: "$or", Value: parts}}
	}
	return bson.D{{Key: "$and", Value: parts}}
}

// Filter traduce un árbol de criterios a un filtro de MongoDB.
func Filter(c domain.Criteria) (bson.D, error) {
	b := &filterBuilder{}
	f := domain.Walk[bson.D](c, b)
	if b.err != nil {
		return nil, b.err
	}
	return f, nil
}

// Sort traduce un SortSpec a la especificación de orden de MongoDB.
func Sort(spec query.SortSpec) (bson.D, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	out := make(bson.D, len(spec))
	for i, s := range spec {
		dir := 1
		if s.Desc {
			dir = -1
		}
		out[i] = bson.E{Key: Field(s.Field), Value: dir}
	}
	return out, nil
}

// Value normaliza valores antes de codificarlos. MongoDB guarda las fechas
// con precisión de milisegundos.
func Value(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return Truncate(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return Truncate(*x)
	default:
		return v
	}
}

// Truncate deja una fecha tal y como la devolverá MongoDB.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
