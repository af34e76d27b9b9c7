package repository

import (
	"testing"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOrder(t *testing.T) {
	// Empty ordering becomes identity ascending.
	order := normalizeOrder(nil)
	assert.Equal(t, []types.SortField{{Field: consts.FieldInternalID}}, order)

	// The identity tail inherits the previous tail's direction.
	order = normalizeOrder([]types.SortField{{Field: "name", Desc: true}})
	assert.Equal(t, []types.SortField{
		{Field: "name", Desc: true},
		{Field: consts.FieldInternalID, Desc: true},
	}, order)

	// An explicit identity field is left alone.
	order = normalizeOrder([]types.SortField{{Field: consts.FieldInternalID, Desc: true}})
	assert.Len(t, order, 1)
}

func TestBoundaryExpr_ConcreteValues(t *testing.T) {
	order := normalizeOrder([]types.SortField{{Field: "name"}, {Field: "age"}})
	after := types.Document{consts.FieldInternalID: "d", "name": "A", "age": 50}

	expr := boundaryExpr(order, after)
	require.Len(t, expr.Or, 3)

	// clause 1: name > "A"
	assert.Equal(t, []types.Cond{{Field: "name", Op: types.CondGt, Value: "A"}}, expr.Or[0])
	// clause 2: name == "A" && age > 50
	assert.Equal(t, []types.Cond{
		{Field: "name", Op: types.CondEq, Value: "A"},
		{Field: "age", Op: types.CondGt, Value: 50},
	}, expr.Or[1])
	// clause 3: name == "A" && age == 50 && _id > "d"
	assert.Equal(t, []types.Cond{
		{Field: "name", Op: types.CondEq, Value: "A"},
		{Field: "age", Op: types.CondEq, Value: 50},
		{Field: consts.FieldInternalID, Op: types.CondGt, Value: "d"},
	}, expr.Or[2])
}

func TestBoundaryExpr_NullValues(t *testing.T) {
	order := normalizeOrder([]types.SortField{{Field: "name"}, {Field: "age"}})

	// Explicit null and absent collate the same.
	for _, after := range []types.Document{
		{consts.FieldInternalID: "b", "name": "B", "age": nil},
		{consts.FieldInternalID: "b", "name": "B"},
	} {
		expr := boundaryExpr(order, after)
		require.Len(t, expr.Or, 3)

		// Ascending past the null band requires a present non-null value.
		assert.Equal(t, types.Cond{Field: "age", Op: types.CondNotNull}, expr.Or[1][1])
		// The equality chain matches absent-or-null.
		assert.Equal(t, types.Cond{Field: "age", Op: types.CondEqNull}, expr.Or[2][1])
	}
}

func TestBoundaryExpr_Descending(t *testing.T) {
	order := normalizeOrder([]types.SortField{{Field: "score", Desc: true}})
	after := types.Document{consts.FieldInternalID: "x", "score": 10}

	expr := boundaryExpr(order, after)
	require.Len(t, expr.Or, 2)
	// Descending: strictly smaller, or inside the null band.
	assert.Equal(t, types.Cond{Field: "score", Op: types.CondLtOrNull, Value: 10}, expr.Or[0][0])

	// Descending from the null band: only values below it remain.
	after = types.Document{consts.FieldInternalID: "x"}
	expr = boundaryExpr(order, after)
	assert.Equal(t, types.Cond{Field: "score", Op: types.CondBeforeNull}, expr.Or[0][0])
}
