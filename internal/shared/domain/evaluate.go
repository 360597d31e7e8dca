package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldGetter devuelve el valor de un campo de un registro y si existe.
type FieldGetter func(field string) (interface{}, bool)

// Matches evalúa el árbol de criterios contra un registro en memoria.
// Es la traducción "de referencia" que usan los fakes y el repositorio en memoria.
func Matches(c Criteria, get FieldGetter) bool {
	return Walk[bool](c, matcher{get: get})
}

type matcher struct {
	get FieldGetter
}

func (m matcher) Condition(c Criterion) bool {
	v, ok := m.get(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpLike:
		s, ok1 := v.(string)
		p, ok2 := c.Value.(string)
		return ok1 && ok2 && likeMatch(s, p)
	case OpILike:
		s, ok1 := v.(string)
		p, ok2 := c.Value.(string)
		return ok1 && ok2 && likeMatch(strings.ToLower(s), strings.ToLower(p))
	}

	cmp, err := Compare(v, c.Value)
	if err != nil {
		return false
	}

	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

func (m matcher) Group(op LogicalOperator, children []bool) bool {
	if op == OpOr {
		for _, ok := range children {
			if ok {
				return true
			}
		}
		return false
	}
	for _, ok := range children {
		if !ok {
			return false
		}
	}
	return true
}

// Compare ordena dos valores escalares del mismo "tipo lógico".
// Devuelve -1, 0 o 1, o error si los tipos no son comparables.
func Compare(a, b interface{}) (int, error) {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time.Time with %T", b)
		}
		return x.Compare(y), nil
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(x, y), nil
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		if !ok {
			return 0, fmt.Errorf("cannot compare decimal.Decimal with %T", b)
		}
		return x.Cmp(y), nil
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	}

	if xi, ok := toInt64(a); ok {
		if yi, ok := toInt64(b); ok {
			return cmpOrdered(xi, yi), nil
		}
	}
	if xf, ok := toFloat64(a); ok {
		if yf, ok := toFloat64(b); ok {
			return cmpOrdered(xf, yf), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// likeMatch soporta los patrones que generan los criterios: "%x%", "x%", "%x" y "x".
func likeMatch(s, pattern string) bool {
	prefix := strings.HasPrefix(pattern, "%")
	suffix := strings.HasSuffix(pattern, "%") && len(pattern) > 1
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	switch {
	case prefix && suffix:
		return strings.Contains(s, core)
	case prefix:
		return strings.HasSuffix(s, core)
	case suffix:
		return strings.HasPrefix(s, core)
	default:
		return s == core
	}
}
