package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedCriteria struct{ name string }

func (n namedCriteria) ToConditions() []Criterion {
	return []Criterion{Eq("name", n.name), Gt("age", 18)}
}

// printer traduce el árbol a una cadena legible para los tests.
type printer struct{}

func (printer) Condition(c Criterion) string {
	return c.Field + string(c.Op)
}

func (printer) Group(op LogicalOperator, children []string) string {
	return "(" + strings.Join(children, " "+string(op)+" ") + ")"
}

func TestAndOr_DropNilAndEmptyGroups(t *testing.T) {
	c := And(nil, Eq("a", 1), And(), nil)
	assert.Len(t, c.Criterias, 1)

	o := Or(nil, Eq("a", 1), Eq("b", 2))
	assert.Equal(t, OpOr, o.Operator)
	assert.Len(t, o.Criterias, 2)
}

func TestCompositeCriteria_ToConditionsFlattens(t *testing.T) {
	c := And(Eq("a", 1), And(Eq("b", 2), Lt("c", 3)))
	conds := c.ToConditions()
	assert.Equal(t, []Criterion{Eq("a", 1), Eq("b", 2), Lt("c", 3)}, conds)
}

func TestWalk(t *testing.T) {
	c := And(
		Eq("community_id", 1),
		Or(Gt("ts", 1), And(Eq("ts", 1), Gt("id", 2))),
		namedCriteria{name: "x"},
	)
	assert.Equal(t, "(community_id= AND (ts> OR (ts= AND id>)) AND (name= AND age>))", Walk[string](c, printer{}))
	assert.Equal(t, "()", Walk[string](nil, printer{}))
	assert.Equal(t, "(a=)", Walk[string](CompositeCriteria{Criterias: []Criteria{Eq("a", 1)}}, printer{}))
}
