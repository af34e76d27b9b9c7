package repository

import (
	"testing"
	"time"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/forbearing/docrepo/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) types.Clock {
	return func() time.Time { return t }
}

var t0 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBuildWriteOp_TimestampLayer(t *testing.T) {
	rc, err := resolve(&Options{
		Timestamps: util.ValueOf(TimestampsClock),
		Clock:      fixedClock(t0),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteCreate, types.Update{}, nil)
	assert.Equal(t, t0, op.SetOnInsert[consts.DefaultCreatedAtKey])
	assert.Equal(t, t0, op.SetOnInsert[consts.DefaultUpdatedAtKey])
	assert.Empty(t, op.Set)
	assert.Empty(t, op.CurrentDate)

	op = rc.buildWriteOp(consts.WriteUpdate, types.Update{Set: map[string]any{"name": "x"}}, nil)
	assert.Equal(t, "x", op.Set["name"])
	assert.Equal(t, t0, op.Set[consts.DefaultUpdatedAtKey])
	assert.NotContains(t, op.Set, consts.DefaultCreatedAtKey)

	op = rc.buildWriteOp(consts.WriteDelete, types.Update{}, nil)
	assert.Equal(t, t0, op.Set[consts.DefaultUpdatedAtKey])
	assert.Equal(t, t0, op.Set[consts.DefaultDeletedAtKey])
}

func TestBuildWriteOp_ServerTimestamps(t *testing.T) {
	rc, err := resolve(&Options{
		Timestamps: util.ValueOf(TimestampsServer),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteCreate, types.Update{}, nil)
	assert.ElementsMatch(t, []string{consts.DefaultCreatedAtKey, consts.DefaultUpdatedAtKey}, op.CurrentDate)
	assert.NotContains(t, op.SetOnInsert, consts.DefaultCreatedAtKey)

	op = rc.buildWriteOp(consts.WriteUpdate, types.Update{}, nil)
	assert.Equal(t, []string{consts.DefaultUpdatedAtKey}, op.CurrentDate)
}

func TestBuildWriteOp_VersionLayer(t *testing.T) {
	rc, err := resolve(&Options{
		Versioning: util.ValueOf(true),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteCreate, types.Update{}, nil)
	assert.Equal(t, int64(1), op.SetOnInsert[consts.DefaultVersionKey])

	op = rc.buildWriteOp(consts.WriteUpdate, types.Update{}, nil)
	assert.Equal(t, int64(1), op.Inc[consts.DefaultVersionKey])

	op = rc.buildWriteOp(consts.WriteDelete, types.Update{}, nil)
	assert.Equal(t, int64(1), op.Inc[consts.DefaultVersionKey])
}

func TestBuildWriteOp_TraceDisabledWithoutContext(t *testing.T) {
	rc, err := resolve(&Options{}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteUpdate, types.Update{}, nil)
	assert.NotContains(t, op.Set, consts.DefaultTraceKey)
	assert.Empty(t, op.Push)
}

func TestBuildWriteOp_TraceLatest(t *testing.T) {
	rc, err := resolve(&Options{
		TraceContext: types.TraceContext{"user": "alice"},
		Clock:        fixedClock(t0),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteUpdate, types.Update{}, nil)
	record, ok := op.Set[consts.DefaultTraceKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", record["user"])
	assert.Equal(t, string(consts.WriteUpdate), record[consts.TraceOpKey])
	assert.Equal(t, t0, record[consts.TraceAtKey])

	// On create the record lands in the insert-only section.
	op = rc.buildWriteOp(consts.WriteCreate, types.Update{}, nil)
	_, ok = op.SetOnInsert[consts.DefaultTraceKey].(map[string]any)
	assert.True(t, ok)
	assert.NotContains(t, op.Set, consts.DefaultTraceKey)
}

func TestBuildWriteOp_TraceBoundedAndUnbounded(t *testing.T) {
	rc, err := resolve(&Options{
		TraceStrategy: TraceBounded,
		TraceLimit:    3,
		TraceContext:  types.TraceContext{"user": "alice"},
		Clock:         fixedClock(t0),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteDelete, types.Update{}, nil)
	spec, ok := op.Push[consts.DefaultTraceKey]
	require.True(t, ok)
	assert.Equal(t, 3, spec.KeepLast)
	require.Len(t, spec.Values, 1)
	record := spec.Values[0].(map[string]any)
	assert.Equal(t, string(consts.WriteDelete), record[consts.TraceOpKey])

	rc, err = resolve(&Options{
		TraceStrategy: TraceUnbounded,
		TraceContext:  types.TraceContext{"user": "alice"},
	}, fullCaps)
	require.NoError(t, err)
	op = rc.buildWriteOp(consts.WriteUpdate, types.Update{}, nil)
	spec, ok = op.Push[consts.DefaultTraceKey]
	require.True(t, ok)
	assert.Zero(t, spec.KeepLast)
}

func TestBuildWriteOp_MergeTrace(t *testing.T) {
	// Merging onto an empty base context enables tracing for the call.
	rc, err := resolve(&Options{}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteUpdate, types.Update{}, types.TraceContext{"request": "r1"})
	record, ok := op.Set[consts.DefaultTraceKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "r1", record["request"])

	// The per-call context wins on collision.
	rc, err = resolve(&Options{TraceContext: types.TraceContext{"user": "alice"}}, fullCaps)
	require.NoError(t, err)
	op = rc.buildWriteOp(consts.WriteUpdate, types.Update{}, types.TraceContext{"user": "bob"})
	record = op.Set[consts.DefaultTraceKey].(map[string]any)
	assert.Equal(t, "bob", record["user"])
}

func TestBuildWriteOp_UserDataPreserved(t *testing.T) {
	rc, err := resolve(&Options{
		Timestamps: util.ValueOf(TimestampsClock),
		Versioning: util.ValueOf(true),
		Clock:      fixedClock(t0),
	}, fullCaps)
	require.NoError(t, err)

	op := rc.buildWriteOp(consts.WriteUpdate, types.Update{
		Set:   map[string]any{"name": "x", "age": 3},
		Unset: []string{"nickname"},
	}, nil)
	assert.Equal(t, "x", op.Set["name"])
	assert.Equal(t, 3, op.Set["age"])
	assert.Equal(t, []string{"nickname"}, op.Unset)
}

func TestSanitize_OmitStrippedDeep(t *testing.T) {
	in := map[string]any{
		"keep":  "v",
		"null":  nil,
		"omit":  types.Omit,
		"inner": map[string]any{"omit": types.Omit, "ok": 1},
		"list":  []any{1, types.Omit, map[string]any{"x": types.Omit, "y": nil}},
	}
	out := sanitizeMap(in)
	assert.Equal(t, map[string]any{
		"keep":  "v",
		"null":  nil,
		"inner": map[string]any{"ok": 1},
		"list":  []any{1, map[string]any{"y": nil}},
	}, out)
}
