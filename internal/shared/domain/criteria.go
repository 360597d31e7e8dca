package domain

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq    Operator = "="
	OpNeq   Operator = "<>"
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpLike  Operator = "LIKE"
	OpILike Operator = "ILIKE"
)

type LogicalOperator string

const (
	OpAnd LogicalOperator = "AND"
	OpOr  LogicalOperator = "OR"
)

// ---------------- Criterion ----------------

// Criterion describe una condición neutral de filtrado
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

// Un Criterion también es un Criteria de una sola condición.
func (c Criterion) ToConditions() []Criterion {
	return []Criterion{c}
}

// ---------------- Criteria interface ----------------

// Criteria permite transformar filtros a condiciones neutrales.
// Las implementaciones "hoja" devuelven condiciones que se combinan con AND;
// para combinar con OR hay que usar CompositeCriteria.
type Criteria interface {
	ToConditions() []Criterion
}

// ---------------- Composite Criteria ----------------

// CompositeCriteria agrupa criterios bajo un operador lógico y puede anidarse.
type CompositeCriteria struct {
	Operator  LogicalOperator
	Criterias []Criteria
}

// ToConditions aplana el árbol. Solo tiene sentido para grupos AND; los
// adaptadores recorren el árbol con Walk para respetar los OR.
func (c CompositeCriteria) ToConditions() []Criterion {
	var all []Criterion
	for _, crit := range c.Criterias {
		if crit == nil {
			continue
		}
		all = append(all, crit.ToConditions()...)
	}
	return all
}

// ---------------- Helpers ----------------

// And crea un CompositeCriteria con operador AND, descartando criterios nil.
func And(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpAnd, Criterias: compact(criterias)}
}

// Or crea un CompositeCriteria con operador OR, descartando criterios nil.
func Or(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpOr, Criterias: compact(criterias)}
}

// Eq, Gt, Lt... atajos para construir condiciones sueltas.
func Eq(field string, v interface{}) Criterion  { return Criterion{Field: field, Op: OpEq, Value: v} }
func Gt(field string, v interface{}) Criterion  { return Criterion{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v interface{}) Criterion { return Criterion{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v interface{}) Criterion  { return Criterion{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v interface{}) Criterion { return Criterion{Field: field, Op: OpLte, Value: v} }

func compact(criterias []Criteria) []Criteria {
	out := make([]Criteria, 0, len(criterias))
	for _, c := range criterias {
		if c == nil {
			continue
		}
		if g, ok := c.(CompositeCriteria); ok && g.Operator == OpAnd && len(g.Criterias) == 0 {
			// AND vacío = sin restricción
			continue
		}
		out = append(out, c)
	}
	return out
}

// ---------------- Recorrido ----------------

// Visitor traduce el árbol de criterios a la representación de cada adaptador
// (SQL, BSON, evaluación en memoria...).
type Visitor[T any] interface {
	Condition(c Criterion) T
	Group(op LogicalOperator, children []T) T
}

// Walk recorre el árbol. Los criterios "hoja" de dominio se expanden con
// ToConditions y se agrupan con AND.
func Walk[T any](c Criteria, v Visitor[T]) T {
	switch crit := c.(type) {
	case nil:
		return v.Group(OpAnd, nil)
	case Criterion:
		return v.Condition(crit)
	case CompositeCriteria:
		children := make([]T, 0, len(crit.Criterias))
		for _, child := range crit.Criterias {
			if child == nil {
				continue
			}
			children = append(children, Walk(child, v))
		}
		op := crit.Operator
		if op == "" {
			op = OpAnd
		}
		return v.Group(op, children)
	default:
		conds := crit.ToConditions()
		children := make([]T, 0, len(conds))
		for _, cond := range conds {
			children = append(children, v.Condition(cond))
		}
		return v.Group(OpAnd, children)
	}
}
