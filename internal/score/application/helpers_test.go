package application

import (
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

func queryAll() query.Query {
	return query.Query{OrderBy: ScoreSort}
}
