package application

import (
	"fmt"
	"time"

	"github.com/davicafu/scoreregistry/internal/shared/platform/paging"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

// Nombres de los filtros tal y como llegan en la query y viajan en el cursor.
const (
	FilterAddress               = "address"
	FilterLastScoreTimestampGt  = "last_score_timestamp__gt"
	FilterLastScoreTimestampGte = "last_score_timestamp__gte"
	FilterCreatedAt             = "created_at"
)

// Órdenes canónicos de cada listado. El último campo es único por registro.
var (
	ScoreSort    = query.SortSpec{query.Asc("last_score_timestamp"), query.Asc("id")}
	HistorySort  = query.SortSpec{query.Desc("created_at"), query.Desc("id")}
	SnapshotSort = query.SortSpec{query.Asc("address")}
)

// ListScoresParams son los parámetros de GET /v2/score/{scorer_id}.
type ListScoresParams struct {
	Address               string
	LastScoreTimestampGt  *time.Time
	LastScoreTimestampGte *time.Time
	Token                 string
	Limit                 int
}

// retained devuelve los filtros a conservar en los cursores.
func (p ListScoresParams) retained() map[string]string {
	out := make(map[string]string)
	if p.Address != "" {
		out[FilterAddress] = p.Address
	}
	if p.LastScoreTimestampGt != nil {
		out[FilterLastScoreTimestampGt] = formatTime(*p.LastScoreTimestampGt)
	}
	if p.LastScoreTimestampGte != nil {
		out[FilterLastScoreTimestampGte] = formatTime(*p.LastScoreTimestampGte)
	}
	return out
}

// fromCursor sustituye los filtros de la petición por los del cursor.
func (p ListScoresParams) fromCursor(c *paging.Cursor) (ListScoresParams, error) {
	out := ListScoresParams{Address: c.Filter(FilterAddress), Token: p.Token, Limit: p.Limit}
	var err error
	if out.LastScoreTimestampGt, err = cursorTime(c, FilterLastScoreTimestampGt); err != nil {
		return out, err
	}
	if out.LastScoreTimestampGte, err = cursorTime(c, FilterLastScoreTimestampGte); err != nil {
		return out, err
	}
	return out, nil
}

// HistoryParams son los parámetros de GET /v2/score/{scorer_id}/history.
type HistoryParams struct {
	Address   string
	CreatedAt *time.Time
	Token     string
	Limit     int
}

func (p HistoryParams) retained() map[string]string {
	out := make(map[string]string)
	if p.Address != "" {
		out[FilterAddress] = p.Address
	}
	if p.CreatedAt != nil {
		out[FilterCreatedAt] = formatTime(*p.CreatedAt)
	}
	return out
}

func (p HistoryParams) fromCursor(c *paging.Cursor) (HistoryParams, error) {
	out := HistoryParams{Address: c.Filter(FilterAddress), Token: p.Token, Limit: p.Limit}
	var err error
	out.CreatedAt, err = cursorTime(c, FilterCreatedAt)
	return out, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func cursorTime(c *paging.Cursor, name string) (*time.Time, error) {
	raw := c.Filter(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %s: %v", paging.ErrInvalidCursor, name, err)
	}
	return &t, nil
}
