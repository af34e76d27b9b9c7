package repository

import "github.com/forbearing/docrepo/types"

// sanitizeMap returns a copy of m with every attribute equal to types.Omit
// removed, at arbitrary nesting depth. Explicit nils are preserved.
func sanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == types.Omit {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return sanitizeMap(vv)
	case []any:
		out := make([]any, 0, len(vv))
		for _, e := range vv {
			if e == types.Omit {
				continue
			}
			out = append(out, sanitizeValue(e))
		}
		return out
	default:
		return v
	}
}
