package query

import (
	"errors"
	"fmt"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
)

// ---------- Tipos de filtrado / paginación / ordenamiento ----------

var ErrInvalidSort = errors.New("invalid sort specification")

// Sort indica campo y dirección.
type Sort struct {
	Field string // ej. "last_score_timestamp", "id"
	Desc  bool
}

// SortSpec es un orden multi-campo. El último campo debe ser único e
// inmutable por registro (normalmente el id) para que el orden sea total.
type SortSpec []Sort

// Asc y Desc son atajos para declarar SortSpecs.
func Asc(field string) Sort  { return Sort{Field: field} }
func Desc(field string) Sort { return Sort{Field: field, Desc: true} }

// Validate comprueba que el orden no esté vacío ni repita campos.
func (s SortSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidSort)
	}
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Field == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidSort)
		}
		if _, dup := seen[f.Field]; dup {
			return fmt.Errorf("%w: duplicated field %q", ErrInvalidSort, f.Field)
		}
		seen[f.Field] = struct{}{}
	}
	return nil
}

// Reversed invierte la dirección de cada campo conservando su posición.
func (s SortSpec) Reversed() SortSpec {
	out := make(SortSpec, len(s))
	for i, f := range s {
		out[i] = Sort{Field: f.Field, Desc: !f.Desc}
	}
	return out
}

// Fields devuelve los nombres de campo en orden.
func (s SortSpec) Fields() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Field
	}
	return out
}

// Query es una lectura acotada y ordenada sobre un almacén.
type Query struct {
	Filter  domain.Criteria
	OrderBy SortSpec
	Limit   int
}
