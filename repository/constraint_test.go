package repository

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/forbearing/docrepo/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scopedConfig(t *testing.T) *resolved {
	t.Helper()
	rc, err := resolve(&Options{
		SoftDelete: util.ValueOf(true),
		Timestamps: util.ValueOf(TimestampsClock),
		Scope:      map[string]any{"tenant": "acme"},
	}, fullCaps)
	require.NoError(t, err)
	return rc
}

func TestBreachCheck(t *testing.T) {
	rc := scopedConfig(t)

	breached, err := rc.breachCheck(types.Filter{"tenant": "acme", "active": true}, BreachEmpty)
	require.NoError(t, err)
	assert.False(t, breached)

	breached, err = rc.breachCheck(types.Filter{"tenant": "foo"}, BreachEmpty)
	require.NoError(t, err)
	assert.True(t, breached)

	_, err = rc.breachCheck(types.Filter{"tenant": "foo"}, BreachError)
	require.ErrorIs(t, err, ErrScopeBreach)

	// A filter silent on the scope key is no breach.
	breached, err = rc.breachCheck(types.Filter{"active": true}, BreachEmpty)
	require.NoError(t, err)
	assert.False(t, breached)
}

func TestApplyConstraints(t *testing.T) {
	rc := scopedConfig(t)

	out := rc.applyConstraints(types.Filter{"active": true})
	assert.Equal(t, true, out["active"])
	assert.Equal(t, "acme", out["tenant"])
	assert.Equal(t, types.NotEqual{Value: true}, out[consts.DefaultSoftDeleteKey])

	// The input filter is untouched.
	in := types.Filter{"active": true}
	_ = rc.applyConstraints(in)
	assert.Len(t, in, 1)
}

func TestValidateUpdate_Readonly(t *testing.T) {
	rc := scopedConfig(t)

	err := rc.validateUpdate(types.Update{Set: map[string]any{
		consts.FieldInternalID:      "x",
		"tenant":                    "bar",
		consts.DefaultCreatedAtKey:  t0,
		"name":                      "ok",
	}})
	var rv *ReadonlyViolationError
	require.True(t, errors.As(err, &rv))
	assert.ElementsMatch(t, []string{consts.FieldInternalID, "tenant", consts.DefaultCreatedAtKey}, rv.Fields)
}

func TestValidateUpdate_UnsetReadonly(t *testing.T) {
	rc := scopedConfig(t)

	err := rc.validateUpdate(types.Update{Unset: []string{consts.DefaultSoftDeleteKey, "name"}})
	var rv *ReadonlyViolationError
	require.True(t, errors.As(err, &rv))
	assert.Equal(t, []string{consts.DefaultSoftDeleteKey}, rv.Fields)
}

func TestValidateUpdate_SetUnsetOverlap(t *testing.T) {
	rc := scopedConfig(t)

	err := rc.validateUpdate(types.Update{
		Set:   map[string]any{"name": "x"},
		Unset: []string{"name"},
	})
	var ov *SetUnsetOverlapError
	require.True(t, errors.As(err, &ov))
	assert.Equal(t, []string{"name"}, ov.Fields)
}

func TestValidateUpdate_CleanUpdatePasses(t *testing.T) {
	rc := scopedConfig(t)
	require.NoError(t, rc.validateUpdate(types.Update{
		Set:   map[string]any{"name": "x"},
		Unset: []string{"nickname"},
	}))
}

func TestCheckCreateScope(t *testing.T) {
	rc := scopedConfig(t)

	require.NoError(t, rc.checkCreateScope(types.Entity{"name": "x"}))
	require.NoError(t, rc.checkCreateScope(types.Entity{"tenant": "acme"}))
	require.ErrorIs(t, rc.checkCreateScope(types.Entity{"tenant": "foo"}), ErrScopeBreach)
}
