package paging

import (
	"fmt"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// BuildCondition resuelve el predicado keyset y el orden a aplicar en una
// lectura. Sin cursor: sin predicado y el orden tal cual (primera página).
// Con cursor, para los campos f0..fn-1 con valores v0..vn-1:
//
//	OR_i ( AND_{j<i} fj = vj  AND  fi CMP vi )
//
// Si el recorrido es hacia atrás el orden devuelto es el inverso del
// configurado; quien lee debe invertir el resultado para presentarlo.
func BuildCondition(spec query.SortSpec, c *Cursor) (domain.Criteria, query.SortSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, spec, nil
	}
	if err := checkAnchor(spec, c.Anchor); err != nil {
		return nil, nil, err
	}

	forward := c.Direction.Forward()
	ordering := spec
	if !forward {
		ordering = spec.Reversed()
	}
	return keysetPredicate(spec, c.Anchor, forward), ordering, nil
}

// keysetPredicate construye la comparación lexicográfica frente al ancla.
func keysetPredicate(spec query.SortSpec, anchor []Key, forward bool) domain.Criteria {
	branches := make([]domain.Criteria, 0, len(spec))
	for i, f := range spec {
		conds := make([]domain.Criteria, 0, i+1)
		for j := 0; j < i; j++ {
			conds = append(conds, domain.Eq(spec[j].Field, anchor[j].Value))
		}
		conds = append(conds, domain.Criterion{
			Field: f.Field,
			Op:    compareOp(f.Desc, forward),
			Value: anchor[i].Value,
		})
		branches = append(branches, domain.And(conds...))
	}
	return domain.Or(branches...)
}

// compareOp: ">" para ascendente hacia delante, "<" para ascendente hacia
// atrás; los campos descendentes al revés.
func compareOp(desc, forward bool) domain.Operator {
	if desc == forward {
		return domain.OpLt
	}
	return domain.OpGt
}

func checkAnchor(spec query.SortSpec, anchor []Key) error {
	if len(anchor) != len(spec) {
		return invalidCursor(fmt.Sprintf("anchor has %d fields, sort has %d", len(anchor), len(spec)))
	}
	for i, f := range spec {
		if anchor[i].Field != f.Field {
			return invalidCursor(fmt.Sprintf("anchor field %d is %q, expected %q", i, anchor[i].Field, f.Field))
		}
	}
	return nil
}

// AnchorOf extrae el ancla de un registro según el orden.
func AnchorOf(spec query.SortSpec, r Record) ([]Key, error) {
	anchor := make([]Key, len(spec))
	for i, f := range spec {
		v, ok := r.FieldValue(f.Field)
		if !ok {
			return nil, fmt.Errorf("paging: record has no sort field %q", f.Field)
		}
		anchor[i] = Key{Field: f.Field, Value: v}
	}
	return anchor, nil
}
