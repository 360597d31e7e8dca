package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(fields map[string]interface{}) FieldGetter {
	return func(field string) (interface{}, bool) {
		v, ok := fields[field]
		return v, ok
	}
}

func TestMatches(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := record(map[string]interface{}{
		"id":      int64(7),
		"address": "0xAbC",
		"ts":      ts,
		"active":  true,
		"score":   decimal.RequireFromString("12.5"),
	})

	cases := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"nil matches all", nil, true},
		{"empty and", And(), true},
		{"empty or", Or(), false},
		{"eq int mixed kinds", Eq("id", 7), true},
		{"neq", Criterion{Field: "id", Op: OpNeq, Value: int64(7)}, false},
		{"gt time", Gt("ts", ts.Add(-time.Minute)), true},
		{"lte time", Lte("ts", ts), true},
		{"lt time", Lt("ts", ts), false},
		{"missing field", Eq("missing", 1), false},
		{"type mismatch", Eq("id", "7"), false},
		{"like prefix", Criterion{Field: "address", Op: OpLike, Value: "0xA%"}, true},
		{"like contains", Criterion{Field: "address", Op: OpLike, Value: "%bC%"}, true},
		{"like case sensitive", Criterion{Field: "address", Op: OpLike, Value: "%abc"}, false},
		{"ilike", Criterion{Field: "address", Op: OpILike, Value: "%abc"}, true},
		{"bool", Eq("active", true), true},
		{"gt decimal", Gt("score", decimal.NewFromInt(12)), true},
		{"eq decimal scale", Eq("score", decimal.RequireFromString("12.50")), true},
		{"or branch", Or(Eq("id", 1), Eq("id", 7)), true},
		{"and branch", And(Eq("id", 7), Eq("active", false)), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.c, r))
		})
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare(int32(3), int64(4))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(2.5, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = Compare("b", "b")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare(false, true)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	c, err = Compare(decimal.RequireFromString("-2"), decimal.RequireFromString("0.001"))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = Compare(decimal.NewFromInt(1), 1)
	assert.Error(t, err)

	_, err = Compare(time.Now(), "now")
	assert.Error(t, err)

	_, err = Compare(struct{}{}, 1)
	assert.Error(t, err)
}
