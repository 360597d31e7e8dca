package sqldb

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/davicafu/scoreregistry/internal/shared/domain"
	sharedUtils "github.com/davicafu/scoreregistry/internal/shared/infra/utils"
	"github.com/davicafu/scoreregistry/internal/shared/platform/query"
)

var ErrUnsupportedCriteria = errors.New("unsupported criteria")

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// fragment es un trozo de SQL con '?' y sus argumentos. sql vacío = sin
// restricción.
type fragment struct {
	sql  string
	args []interface{}
}

type whereBuilder struct {
	d   Dialect
	err error
}

func (b *whereBuilder) Condition(c domain.Criterion) fragment {
	if !identRe.MatchString(c.Field) {
		b.fail(fmt.Errorf("%w: invalid field %q", ErrUnsupportedCriteria, c.Field))
		return fragment{}
	}

	var op string
	switch c.Op {
	case domain.OpEq, domain.OpNeq, domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte, domain.OpLike:
		op = string(c.Op)
	case domain.OpILike:
		op = b.d.ilike
	default:
		b.fail(fmt.Errorf("%w: operator %q", ErrUnsupportedCriteria, c.Op))
		return fragment{}
	}
	return fragment{sql: c.Field + " " + op + " ?", args: []interface{}{b.d.Arg(c.Value)}}
}

func (b *whereBuilder) Group(op domain.LogicalOperator, children []fragment) fragment {
	parts := make([]string, 0, len(children))
	var args []interface{}
	for _, ch := range children {
		if ch.sql == "" {
			// rama sin restricción: hace cierto un OR y es neutra en un AND
			if op == domain.OpOr {
				return fragment{}
			}
			continue
		}
		parts = append(parts, ch.sql)
		args = append(args, ch.args...)
	}

	switch len(parts) {
	case 0:
		if op == domain.OpOr {
			return fragment{sql: "1 = 0"}
		}
		return fragment{}
	case 1:
		return fragment{sql: parts[0], args: args}
	default:
		return fragment{sql: "(" + strings.Join(parts, " "+string(op)+" ") + ")", args: args}
	}
}

func (b *whereBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Where traduce un árbol de criterios a una condición SQL con '?' (usar
// Rebind después). Devuelve "" si no hay restricción.
func Where(c domain.Criteria, d Dialect) (string, []interface{}, error) {
	b := &whereBuilder{d: d}
	f := domain.Walk[fragment](c, b)
	if b.err != nil {
		return "", nil, b.err
	}
	return f.sql, f.args, nil
}

// OrderBy traduce un SortSpec a la cláusula ORDER BY (sin la palabra clave).
func OrderBy(spec query.SortSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	parts := make([]string, len(spec))
	for i, s := range spec {
		if !identRe.MatchString(s.Field) {
			return "", fmt.Errorf("%w: invalid sort field %q", ErrUnsupportedCriteria, s.Field)
		}
		parts[i] = s.Field + " " + sharedUtils.Ternary(s.Desc, "DESC", "ASC")
	}
	return strings.Join(parts, ", "), nil
}

// Select compone una lectura acotada: SELECT cols FROM from [WHERE] ORDER BY LIMIT.
func Select(d Dialect, columns, from string, q query.Query) (string, []interface{}, error) {
	where, args, err := Where(q.Filter, d)
	if err != nil {
		return "", nil, err
	}
	order, err := OrderBy(q.OrderBy)
	if err != nil {
		return "", nil, err
	}

	sqlStr := "SELECT " + columns + " FROM " + from
	if where != "" {
		sqlStr += " WHERE " + where
	}
	sqlStr += " ORDER BY " + order
	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return d.Rebind(sqlStr), args, nil
}

// Exists compone una comprobación de existencia: SELECT 1 FROM from [WHERE] LIMIT 1.
func Exists(d Dialect, from string, filter domain.Criteria) (string, []interface{}, error) {
	where, args, err := Where(filter, d)
	if err != nil {
		return "", nil, err
	}
	sqlStr := "SELECT 1 FROM " + from
	if where != "" {
		sqlStr += " WHERE " + where
	}
	sqlStr += " LIMIT 1"
	return d.Rebind(sqlStr), args, nil
}
