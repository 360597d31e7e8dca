package memory

import (
	"sort"

	sharedDomain "github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// find aplica filtro, orden y límite sobre una copia de los registros.
func find[T paging.Record](items []T, q query.Query, clone func(T) T) []T {
	out := make([]T, 0)
	for _, it := range items {
		if sharedDomain.Matches(q.Filter, it.FieldValue) {
			out = append(out, clone(it))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(q.OrderBy, out[i], out[j]) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func exists[T paging.Record](items []T, filter sharedDomain.Criteria) bool {
	for _, it := range items {
		if sharedDomain.Matches(filter, it.FieldValue) {
			return true
		}
	}
	return false
}

func less[T paging.Record](spec query.SortSpec, a, b T) bool {
	for _, f := range spec {
		av, _ := a.FieldValue(f.Field)
		bv, _ := b.FieldValue(f.Field)
		c, err := sharedDomain.Compare(av, bv)
		if err != nil || c == 0 {
			continue
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}
