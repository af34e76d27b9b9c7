package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/forbearing/docrepo/logger"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InsertMany creates documents in atomic batches of at most
// consts.FirestoreMaxBatchWrites. A batch is all-or-nothing: on failure the
// adapter cannot split credit inside it, so the whole batch and every
// subsequent one count as not inserted.
func (b *Backend) InsertMany(ctx context.Context, ids []string, docs []types.Document, currentDate []string) error {
	limit := consts.FirestoreMaxBatchWrites

	for start := 0; start < len(ids); start += limit {
		end := min(start+limit, len(ids))

		var err error
		if b.tx != nil {
			for i := start; i < end; i++ {
				if err = b.tx.Create(b.coll.Doc(ids[i]), prepareDoc(docs[i], currentDate)); err != nil {
					break
				}
			}
		} else {
			batch := b.client.Batch()
			for i := start; i < end; i++ {
				batch.Create(b.coll.Doc(ids[i]), prepareDoc(docs[i], currentDate))
			}
			_, err = batch.Commit(ctx)
		}

		if err != nil {
			if status.Code(err) == codes.AlreadyExists {
				logger.Firestore.WithPhase(consts.PHASE_CREATE_MANY, b.coll.ID).Warnw("identity conflict in batch", "error", err)
			}
			return &types.PartialCreateError{
				InsertedIDs: append([]string(nil), ids[:start]...),
				FailedIDs:   append([]string(nil), ids[start:]...),
			}
		}
	}
	return nil
}

// prepareDoc strips the internal identity (the document id carries it) and
// installs server-timestamp sentinels for the requested attributes.
func prepareDoc(doc types.Document, currentDate []string) map[string]any {
	out := make(map[string]any, len(doc)+len(currentDate))
	for k, v := range doc {
		if k == consts.FieldInternalID {
			continue
		}
		out[k] = v
	}
	for _, k := range currentDate {
		out[k] = firestore.ServerTimestamp
	}
	return out
}

// UpdateByIDs resolves the visible documents first — firestore cannot
// update by query — then applies the field operators in atomic batches.
// Missing identities drop out during resolution, which makes them a no-op.
func (b *Backend) UpdateByIDs(ctx context.Context, ids []string, base types.Filter, op *types.WriteOp) error {
	refs, err := b.resolveVisible(ctx, ids, base)
	if err != nil {
		return err
	}
	updates := lowerWriteOp(op)
	if len(updates) == 0 {
		return nil
	}
	return b.batched(ctx, refs, func(batch *firestore.WriteBatch, ref *firestore.DocumentRef) {
		batch.Update(ref, updates)
	}, func(ref *firestore.DocumentRef) error {
		return b.tx.Update(ref, updates)
	})
}

// DeleteByIDs resolves the visible documents and removes them in atomic
// batches.
func (b *Backend) DeleteByIDs(ctx context.Context, ids []string, base types.Filter) error {
	refs, err := b.resolveVisible(ctx, ids, base)
	if err != nil {
		return err
	}
	return b.batched(ctx, refs, func(batch *firestore.WriteBatch, ref *firestore.DocumentRef) {
		batch.Delete(ref)
	}, func(ref *firestore.DocumentRef) error {
		return b.tx.Delete(ref)
	})
}

// batched applies one write per ref, chunked into atomic batches, or
// through the bound transaction when one is set.
func (b *Backend) batched(ctx context.Context, refs []*firestore.DocumentRef,
	add func(*firestore.WriteBatch, *firestore.DocumentRef),
	inTx func(*firestore.DocumentRef) error,
) error {
	if b.tx != nil {
		for _, ref := range refs {
			if err := inTx(ref); err != nil {
				return err
			}
		}
		return nil
	}
	limit := consts.FirestoreMaxBatchWrites
	for start := 0; start < len(refs); start += limit {
		end := min(start+limit, len(refs))
		batch := b.client.Batch()
		for _, ref := range refs[start:end] {
			add(batch, ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// resolveVisible returns the refs of the documents in ids that match base.
func (b *Backend) resolveVisible(ctx context.Context, ids []string, base types.Filter) ([]*firestore.DocumentRef, error) {
	docs, err := b.FindByIDs(ctx, ids, base, &types.ReadOptions{Projection: []string{consts.FieldInternalID}})
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(docs))
	for _, doc := range docs {
		if id, ok := doc[consts.FieldInternalID].(string); ok {
			refs = append(refs, b.coll.Doc(id))
		}
	}
	return refs, nil
}

// lowerWriteOp translates the neutral write descriptor into firestore
// field operators. SetOnInsert does not apply: firestore updates never
// create documents.
func lowerWriteOp(op *types.WriteOp) []firestore.Update {
	var updates []firestore.Update
	for k, v := range op.Set {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	for k, v := range op.Inc {
		updates = append(updates, firestore.Update{Path: k, Value: firestore.Increment(v)})
	}
	for _, k := range op.Unset {
		updates = append(updates, firestore.Update{Path: k, Value: firestore.Delete})
	}
	for k, spec := range op.Push {
		// Firestore has no slice-on-append; bounded pushes are refused at
		// construction, so KeepLast never reaches this point.
		updates = append(updates, firestore.Update{Path: k, Value: firestore.ArrayUnion(spec.Values...)})
	}
	for _, k := range op.CurrentDate {
		updates = append(updates, firestore.Update{Path: k, Value: firestore.ServerTimestamp})
	}
	return updates
}
