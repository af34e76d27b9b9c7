package repository

import (
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
)

// normalizeOrder appends the backend identity as the final tiebreaker of an
// ordering, inheriting the direction of the previous tail. The identity
// tail guarantees a deterministic total order for pagination.
func normalizeOrder(order []types.SortField) []types.SortField {
	for _, f := range order {
		if f.Field == consts.FieldInternalID {
			return order
		}
	}
	desc := false
	if len(order) > 0 {
		desc = order[len(order)-1].Desc
	}
	out := make([]types.SortField, 0, len(order)+1)
	out = append(out, order...)
	return append(out, types.SortField{Field: consts.FieldInternalID, Desc: desc})
}

// boundaryExpr builds the exclusive "after this document" expression for an
// ordering and the cursor document. The result is a disjunction of one
// clause per sort field: clause i fixes fields 1..i-1 to the cursor values
// and strictly compares field i.
//
// Null and absent values collate as one band: ascending, a concrete value
// is greater than the band; descending, the band comes after every
// concrete value, so "less than v" admits the band.
func boundaryExpr(order []types.SortField, after types.Document) *types.Expr {
	expr := &types.Expr{Or: make([][]types.Cond, 0, len(order))}
	for i, f := range order {
		clause := make([]types.Cond, 0, i+1)
		for _, prev := range order[:i] {
			pv, ok := after[prev.Field]
			if !ok || pv == nil {
				clause = append(clause, types.Cond{Field: prev.Field, Op: types.CondEqNull})
			} else {
				clause = append(clause, types.Cond{Field: prev.Field, Op: types.CondEq, Value: pv})
			}
		}
		clause = append(clause, strictCompare(f, after))
		expr.Or = append(expr.Or, clause)
	}
	return expr
}

// strictCompare builds the strict comparison of one sort field against the
// cursor document's value.
func strictCompare(f types.SortField, after types.Document) types.Cond {
	v, present := after[f.Field]
	isNull := !present || v == nil

	if !f.Desc {
		if isNull {
			// Ascending past the null band: present and non-null.
			return types.Cond{Field: f.Field, Op: types.CondNotNull}
		}
		return types.Cond{Field: f.Field, Op: types.CondGt, Value: v}
	}
	if isNull {
		// Descending past the null band: only values ordered below it.
		return types.Cond{Field: f.Field, Op: types.CondBeforeNull}
	}
	return types.Cond{Field: f.Field, Op: types.CondLtOrNull, Value: v}
}
