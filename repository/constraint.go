package repository

import (
	"maps"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/types"
)

// breachCheck inspects a user filter against the scope. A breach occurs iff
// the filter mentions a scope key with a different value. The returned
// error is non-nil only under the BreachError policy.
func (rc *resolved) breachCheck(filter types.Filter, policy ScopeBreachPolicy) (breached bool, err error) {
	for k, sv := range rc.scope {
		fv, ok := filter[k]
		if !ok {
			continue
		}
		if fv != sv {
			if policy == BreachError {
				return true, errors.Wrapf(ErrScopeBreach, "attribute %q", k)
			}
			return true, nil
		}
	}
	return false, nil
}

// applyConstraints intersects a user filter with the scope and, when soft
// deletion is enabled, with the not-deleted predicate. The input filter is
// not modified.
func (rc *resolved) applyConstraints(filter types.Filter) types.Filter {
	out := make(types.Filter, len(filter)+len(rc.scope)+1)
	maps.Copy(out, filter)
	maps.Copy(out, rc.scope)
	if rc.softDelete {
		out[rc.softDeleteKey] = types.NotEqual{Value: true}
	}
	return out
}

// constraints returns the scope and soft-delete predicate alone, used to
// decide document visibility on id-addressed paths.
func (rc *resolved) constraints() types.Filter {
	return rc.applyConstraints(nil)
}

// validateUpdate rejects updates whose set or unset sections overlap each
// other or touch managed or scope attributes. Violations are reported all
// at once, before any backend I/O.
func (rc *resolved) validateUpdate(u types.Update) error {
	if len(u.Set) > 0 && len(u.Unset) > 0 {
		var overlap []string
		for _, k := range u.Unset {
			if _, ok := u.Set[k]; ok {
				overlap = append(overlap, k)
			}
		}
		if len(overlap) > 0 {
			return &SetUnsetOverlapError{Fields: overlap}
		}
	}

	var violations []string
	seen := make(map[string]struct{})
	flag := func(k string) {
		if _, dup := seen[k]; dup {
			return
		}
		if _, ok := rc.readonly[k]; ok {
			violations = append(violations, k)
			seen[k] = struct{}{}
			return
		}
		if _, ok := rc.scope[k]; ok {
			violations = append(violations, k)
			seen[k] = struct{}{}
		}
	}
	for k := range u.Set {
		flag(k)
	}
	for _, k := range u.Unset {
		flag(k)
	}
	if len(violations) > 0 {
		sort.Strings(violations)
		return &ReadonlyViolationError{Fields: violations}
	}
	return nil
}

// checkCreateScope verifies that scope values supplied on a create equal
// the repository scope. Missing scope attributes are stamped by the caller
// afterwards.
func (rc *resolved) checkCreateScope(e types.Entity) error {
	for k, sv := range rc.scope {
		if ev, ok := e[k]; ok && ev != sv {
			return errors.Wrapf(ErrScopeBreach, "create supplies %q=%v, scope requires %v", k, ev, sv)
		}
	}
	return nil
}
