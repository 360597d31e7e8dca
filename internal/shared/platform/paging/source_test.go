package paging

import (
	"context"
	"sort"
	"time"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// row es un registro mínimo para los tests: (ts, id) más un campo de filtro.
type row struct {
	ID    int64
	TS    time.Time
	Group string
}

func (r row) FieldValue(field string) (interface{}, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "ts":
		return r.TS, true
	case "group":
		return r.Group, true
	}
	return nil, false
}

// memSource implementa Source evaluando los criterios en memoria.
type memSource struct {
	rows   []row
	err    error
	finds  int
	exists int
	last   query.Query
}

func (m *memSource) Find(ctx context.Context, q query.Query) ([]row, error) {
	m.finds++
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	var out []row
	for _, r := range m.rows {
		if domain.Matches(q.Filter, r.FieldValue) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(q.OrderBy, out[i], out[j]) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memSource) Exists(ctx context.Context, filter domain.Criteria) (bool, error) {
	m.exists++
	if m.err != nil {
		return false, m.err
	}
	for _, r := range m.rows {
		if domain.Matches(filter, r.FieldValue) {
			return true, nil
		}
	}
	return false, nil
}

func less(spec query.SortSpec, a, b row) bool {
	for _, f := range spec {
		av, _ := a.FieldValue(f.Field)
		bv, _ := b.FieldValue(f.Field)
		c, _ := domain.Compare(av, bv)
		if c == 0 {
			continue
		}
		if f.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

// seqRows genera n filas con timestamps que se repiten de dos en dos para
// forzar empates en el primer campo.
func seqRows(n int) []row {
	rows := make([]row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, row{ID: int64(100 - i), TS: at(i / 2), Group: "a"})
	}
	return rows
}
