package repository

import (
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/forbearing/docrepo/util"
)

// mapOut converts a persisted document into the public entity shape: the
// identity attribute is synthesized from the backend identity, hidden meta
// keys are dropped, and an optional projection is applied.
func (rc *resolved) mapOut(doc types.Document, projection []string) types.Entity {
	if doc == nil {
		return nil
	}
	id, _ := doc[consts.FieldInternalID].(string)

	if len(projection) > 0 {
		out := make(types.Entity, len(projection))
		for _, k := range projection {
			if k == rc.idKey {
				out[rc.idKey] = id
				continue
			}
			if rc.isHidden(k) || k == consts.FieldInternalID {
				continue
			}
			if v, ok := doc[k]; ok {
				out[k] = v
			}
		}
		return out
	}

	out := make(types.Entity, len(doc))
	for k, v := range doc {
		if k == consts.FieldInternalID || rc.isHidden(k) {
			continue
		}
		out[k] = v
	}
	out[rc.idKey] = id
	return out
}

// backendProjection rewrites a public projection into backend attribute
// names: the identity attribute maps onto the internal id selector, which
// adapters always return anyway.
func (rc *resolved) backendProjection(projection []string) []string {
	if len(projection) == 0 {
		return nil
	}
	out := make([]string, 0, len(projection))
	for _, k := range projection {
		if k == rc.idKey {
			continue
		}
		out = append(out, k)
	}
	return out
}

// mapIn builds the persisted document for a create: scope values, the
// caller's attributes with managed names stripped, the identity, and the
// optional mirror attribute.
func (rc *resolved) mapIn(e types.Entity, id string) types.Document {
	doc := make(types.Document, len(e)+len(rc.scope)+2)
	for k, v := range rc.scope {
		doc[k] = v
	}
	for k, v := range e {
		if _, managed := rc.readonly[k]; managed {
			continue
		}
		doc[k] = v
	}
	doc[consts.FieldInternalID] = id
	if rc.mirrorID {
		doc[rc.idKey] = id
	}
	if rc.softDelete {
		// Stamp the mark explicitly so equality and inequality reads agree
		// across backends.
		doc[rc.softDeleteKey] = false
	}
	return doc
}

// generateID picks the identity for a new document: the configured
// generator when present, the backend's native generator otherwise.
func (rc *resolved) generateID(backend types.Backend) string {
	if rc.idGen != nil {
		if id := rc.idGen(); len(id) > 0 {
			return id
		}
	}
	if backend != nil {
		return backend.GenerateID()
	}
	return util.UUID()
}
