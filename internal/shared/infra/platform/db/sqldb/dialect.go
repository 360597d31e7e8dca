package sqldb

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout es el formato de ancho fijo con el que se guardan las fechas
// en los motores sin tipo temporal nativo: así el orden lexicográfico
// coincide con el cronológico.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect recoge lo que cambia entre motores SQL: placeholders, operador
// ILIKE y representación de valores.
type Dialect struct {
	Name       string
	numbered   bool   // $1, $2... en lugar de ?
	ilike      string // operador para búsquedas insensibles
	timeAsText bool
}

var (
	Postgres   = Dialect{Name: "postgres", numbered: true, ilike: "ILIKE"}
	SQLite     = Dialect{Name: "sqlite", ilike: "LIKE", timeAsText: true}
	ClickHouse = Dialect{Name: "clickhouse", ilike: "ILIKE"}
)

// Rebind convierte los '?' de una consulta al estilo de placeholder del motor.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Arg normaliza un valor antes de enviarlo al driver.
func (d Dialect) Arg(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		if d.timeAsText {
			return x.UTC().Format(TimeLayout)
		}
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return d.Arg(*x)
	case decimal.Decimal:
		return x.String()
	default:
		return v
	}
}

// Args aplica Arg a una lista.
func (d Dialect) Args(vs ...interface{}) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = d.Arg(v)
	}
	return out
}
