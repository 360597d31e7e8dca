package paging

import (
	"context"
	"fmt"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

const (
	DefaultMaxLimit = 1000
)

// Record es cualquier fila que expone al menos los campos del SortSpec.
type Record interface {
	FieldValue(field string) (interface{}, bool)
}

// Source es la capacidad mínima que el paginador necesita del almacén:
// lectura filtrada, ordenada y acotada, y comprobación de existencia.
type Source[T Record] interface {
	Find(ctx context.Context, q query.Query) ([]T, error)
	Exists(ctx context.Context, filter domain.Criteria) (bool, error)
}

// Request agrupa los parámetros de una lectura de página.
type Request struct {
	Filter   domain.Criteria   // filtro base (nil = todo)
	Sort     query.SortSpec    // orden canónico de presentación
	Cursor   *Cursor           // nil = primera página
	Limit    int               // tamaño de página
	Retained map[string]string // filtros a conservar en los cursores
}

// Page es una ventana de resultados en orden canónico.
type Page[T Record] struct {
	Items []T
	Next  *Cursor
	Prev  *Cursor
}

// HasMore indica si hay registros después del último de la página.
func (p *Page[T]) HasMore() bool { return p.Next != nil }

// HasPrev indica si hay registros antes del primero de la página.
func (p *Page[T]) HasPrev() bool { return p.Prev != nil }

// Paginator es sin estado: solo guarda configuración, todo el estado del
// recorrido viaja en el cursor.
type Paginator struct {
	maxLimit int
}

func NewPaginator(maxLimit int) *Paginator {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Paginator{maxLimit: maxLimit}
}

// MaxLimit devuelve el tamaño de página máximo configurado.
func (p *Paginator) MaxLimit() int {
	return p.maxLimit
}

// CheckLimit valida el tamaño de página antes de tocar el almacén.
func (p *Paginator) CheckLimit(limit int) error {
	if limit < 1 || limit > p.maxLimit {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, limit, p.maxLimit)
	}
	return nil
}

// FetchPage lee una página. Hace hasta tres lecturas secuenciales (ventana,
// existencia posterior y existencia anterior) sin snapshot común, así que
// HasMore/HasPrev pueden quedar desfasados frente a escrituras concurrentes.
func FetchPage[T Record](ctx context.Context, p *Paginator, src Source[T], req Request) (*Page[T], error) {
	if err := p.CheckLimit(req.Limit); err != nil {
		return nil, err
	}
	predicate, ordering, err := BuildCondition(req.Sort, req.Cursor)
	if err != nil {
		return nil, err
	}

	items, err := src.Find(ctx, query.Query{
		Filter:  domain.And(req.Filter, predicate),
		OrderBy: ordering,
		Limit:   req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}
	if req.Cursor != nil && !req.Cursor.Direction.Forward() {
		reverse(items)
	}

	page := &Page[T]{Items: items}
	if len(items) == 0 {
		page.Items = make([]T, 0)
		return page, nil
	}

	last, err := AnchorOf(req.Sort, items[len(items)-1])
	if err != nil {
		return nil, err
	}
	first, err := AnchorOf(req.Sort, items[0])
	if err != nil {
		return nil, err
	}

	hasMore, err := src.Exists(ctx, domain.And(req.Filter, keysetPredicate(req.Sort, last, true)))
	if err != nil {
		return nil, fmt.Errorf("check next page: %w", err)
	}
	hasPrev, err := src.Exists(ctx, domain.And(req.Filter, keysetPredicate(req.Sort, first, false)))
	if err != nil {
		return nil, fmt.Errorf("check previous page: %w", err)
	}

	if hasMore {
		page.Next = &Cursor{Direction: Next, Anchor: last, Filters: copyFilters(req.Retained)}
	}
	if hasPrev {
		page.Prev = &Cursor{Direction: Prev, Anchor: first, Filters: copyFilters(req.Retained)}
	}
	return page, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func copyFilters(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
