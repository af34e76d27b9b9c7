package repository

import (
	"maps"
	"time"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
)

// buildWriteOp composes the neutral write descriptor for a write kind from
// the caller's update. Layers apply in order: user data, timestamps,
// version, trace. The trace layer runs last so it observes the final write
// kind. Each layer is pure; the descriptor is assembled fresh per call.
func (rc *resolved) buildWriteOp(kind consts.WriteKind, u types.Update, mergeTrace types.TraceContext) *types.WriteOp {
	now := rc.clock()

	op := &types.WriteOp{}
	if len(u.Set) > 0 {
		op.Set = sanitizeMap(u.Set)
	}
	if len(u.Unset) > 0 {
		op.Unset = append([]string(nil), u.Unset...)
	}

	rc.applyTimestamps(op, kind, now)
	rc.applyVersion(op, kind)
	rc.applyTrace(op, kind, mergeTrace, now)
	return op
}

func (rc *resolved) applyTimestamps(op *types.WriteOp, kind consts.WriteKind, now time.Time) {
	if rc.tsMode == TimestampsOff {
		return
	}
	// Server-stamped fields go through CurrentDate exclusively: backends
	// reject a set and a server stamp on the same path in one operation.
	server := rc.tsMode == TimestampsServer

	switch kind {
	case consts.WriteCreate:
		if server {
			op.CurrentDate = append(op.CurrentDate, rc.createdAtKey, rc.updatedAtKey)
			return
		}
		op.SetOnInsert = ensure(op.SetOnInsert)
		op.SetOnInsert[rc.createdAtKey] = now
		op.SetOnInsert[rc.updatedAtKey] = now
	case consts.WriteUpdate:
		if server {
			op.CurrentDate = append(op.CurrentDate, rc.updatedAtKey)
			return
		}
		op.Set = ensure(op.Set)
		op.Set[rc.updatedAtKey] = now
	case consts.WriteDelete:
		if server {
			op.CurrentDate = append(op.CurrentDate, rc.updatedAtKey, rc.deletedAtKey)
			return
		}
		op.Set = ensure(op.Set)
		op.Set[rc.updatedAtKey] = now
		op.Set[rc.deletedAtKey] = now
	}
}

func (rc *resolved) applyVersion(op *types.WriteOp, kind consts.WriteKind) {
	if !rc.versioning {
		return
	}
	switch kind {
	case consts.WriteCreate:
		op.SetOnInsert = ensure(op.SetOnInsert)
		op.SetOnInsert[rc.versionKey] = int64(1)
	case consts.WriteUpdate, consts.WriteDelete:
		if op.Inc == nil {
			op.Inc = make(map[string]int64, 1)
		}
		op.Inc[rc.versionKey]++
	}
}

func (rc *resolved) applyTrace(op *types.WriteOp, kind consts.WriteKind, mergeTrace types.TraceContext, now time.Time) {
	merged := mergeTraceContext(rc.traceCtx, mergeTrace)
	if len(merged) == 0 {
		return
	}

	// The trace element always carries a client-clock timestamp: a pushed
	// list element cannot embed a server-side clock expression.
	record := make(map[string]any, len(merged)+2)
	maps.Copy(record, merged)
	record[consts.TraceOpKey] = string(kind)
	record[consts.TraceAtKey] = now

	if kind == consts.WriteCreate {
		// Creates dispatch as insert-if-absent; the trace lands in the
		// insert-only section so a conflicting identity stays untouched.
		op.SetOnInsert = ensure(op.SetOnInsert)
		switch rc.traceStrategy {
		case TraceLatest:
			op.SetOnInsert[rc.traceKey] = record
		default:
			op.SetOnInsert[rc.traceKey] = []any{record}
		}
		return
	}

	switch rc.traceStrategy {
	case TraceLatest:
		op.Set = ensure(op.Set)
		op.Set[rc.traceKey] = record
	case TraceBounded:
		if op.Push == nil {
			op.Push = make(map[string]types.PushSpec, 1)
		}
		op.Push[rc.traceKey] = types.PushSpec{Values: []any{record}, KeepLast: rc.traceLimit}
	case TraceUnbounded:
		if op.Push == nil {
			op.Push = make(map[string]types.PushSpec, 1)
		}
		op.Push[rc.traceKey] = types.PushSpec{Values: []any{record}}
	}
}

// mergeTraceContext merges the construction-time context with a per-call
// context; the per-call context wins on collision. A per-call context on an
// empty base enables tracing for that single call.
func mergeTraceContext(base, merge types.TraceContext) types.TraceContext {
	if len(base) == 0 && len(merge) == 0 {
		return nil
	}
	out := make(types.TraceContext, len(base)+len(merge))
	maps.Copy(out, base)
	maps.Copy(out, merge)
	return out
}

func ensure(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	return m
}
