package repository

import (
	"testing"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/forbearing/docrepo/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapOut(t *testing.T) {
	rc, err := resolve(&Options{
		Versioning: util.ValueOf(true),
		Timestamps: util.ValueOf(TimestampsClock),
	}, fullCaps)
	require.NoError(t, err)

	doc := types.Document{
		consts.FieldInternalID:     "abc",
		"name":                     "x",
		consts.DefaultVersionKey:   int64(3),
		consts.DefaultCreatedAtKey: t0,
		consts.DefaultTraceKey:     map[string]any{"user": "alice"},
	}

	e := rc.mapOut(doc, nil)
	assert.Equal(t, "abc", e[consts.DefaultIDKey])
	assert.Equal(t, "x", e["name"])
	assert.NotContains(t, e, consts.FieldInternalID)
	assert.NotContains(t, e, consts.DefaultVersionKey)
	assert.NotContains(t, e, consts.DefaultCreatedAtKey)
	assert.NotContains(t, e, consts.DefaultTraceKey)
}

func TestMapOut_VisibleVersionKey(t *testing.T) {
	rc, err := resolve(&Options{
		Versioning: util.ValueOf(true),
		VersionKey: "revision",
	}, fullCaps)
	require.NoError(t, err)

	e := rc.mapOut(types.Document{consts.FieldInternalID: "abc", "revision": int64(2)}, nil)
	assert.Equal(t, int64(2), e["revision"])
}

func TestMapOut_Projection(t *testing.T) {
	rc, err := resolve(nil, fullCaps)
	require.NoError(t, err)

	doc := types.Document{consts.FieldInternalID: "abc", "name": "x", "age": 3}

	e := rc.mapOut(doc, []string{"name"})
	assert.Equal(t, types.Entity{"name": "x"}, e)

	// The identity attribute is synthesized when projected.
	e = rc.mapOut(doc, []string{consts.DefaultIDKey, "age"})
	assert.Equal(t, types.Entity{consts.DefaultIDKey: "abc", "age": 3}, e)
}

func TestMapIn(t *testing.T) {
	rc, err := resolve(&Options{
		SoftDelete: util.ValueOf(true),
		Versioning: util.ValueOf(true),
		Scope:      map[string]any{"tenant": "acme"},
	}, fullCaps)
	require.NoError(t, err)

	doc := rc.mapIn(types.Entity{
		"name":                   "x",
		consts.DefaultVersionKey: int64(99), // managed, must be stripped
		consts.DefaultIDKey:      "forged",  // managed, must be stripped
	}, "id1")

	assert.Equal(t, "id1", doc[consts.FieldInternalID])
	assert.Equal(t, "acme", doc["tenant"])
	assert.Equal(t, "x", doc["name"])
	assert.Equal(t, false, doc[consts.DefaultSoftDeleteKey])
	assert.NotContains(t, doc, consts.DefaultVersionKey)
	assert.NotContains(t, doc, consts.DefaultIDKey)
}

func TestMapIn_MirrorID(t *testing.T) {
	rc, err := resolve(&Options{MirrorID: true}, fullCaps)
	require.NoError(t, err)

	doc := rc.mapIn(types.Entity{"name": "x"}, "id1")
	assert.Equal(t, "id1", doc[consts.DefaultIDKey])
}

func TestGenerateID(t *testing.T) {
	rc, err := resolve(&Options{IDGenerator: func() string { return "custom" }}, fullCaps)
	require.NoError(t, err)
	assert.Equal(t, "custom", rc.generateID(nil))

	rc, err = resolve(nil, fullCaps)
	require.NoError(t, err)
	assert.NotEmpty(t, rc.generateID(nil))
}

func TestBackendProjection(t *testing.T) {
	rc, err := resolve(nil, fullCaps)
	require.NoError(t, err)

	assert.Nil(t, rc.backendProjection(nil))
	// The public identity attribute maps onto the internal id selector,
	// which adapters always return.
	assert.Equal(t, []string{"name"}, rc.backendProjection([]string{consts.DefaultIDKey, "name"}))
}
