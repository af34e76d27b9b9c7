package mongo

import (
	"context"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// InsertMany creates documents as ordered bulk upserts keyed by the
// pre-generated identities. Dispatching as insert-if-absent upserts gives
// per-op outcome reporting: an op that matched an existing identity is a
// conflict and counts as failed. On any non-full success the per-op upsert
// map of the current batch is classified and every id of subsequent
// batches is marked skipped.
func (b *Backend) InsertMany(ctx context.Context, ids []string, docs []types.Document, currentDate []string) error {
	sctx := b.ctx(ctx)
	limit := consts.MongoMaxBatchWrites

	for start := 0; start < len(ids); start += limit {
		end := min(start+limit, len(ids))
		models := make([]mongo.WriteModel, 0, end-start)
		for i := start; i < end; i++ {
			update := bson.M{"$setOnInsert": withoutInternalID(docs[i])}
			if len(currentDate) > 0 {
				update["$currentDate"] = currentDateDoc(currentDate)
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{consts.FieldInternalID: ids[i]}).
				SetUpdate(update).
				SetUpsert(true))
		}

		res, err := b.coll.BulkWrite(sctx, models, options.BulkWrite().SetOrdered(true))
		upserted := make(map[int]struct{})
		if res != nil {
			for idx := range res.UpsertedIDs {
				upserted[int(idx)] = struct{}{}
			}
		}
		if err != nil || len(upserted) != end-start {
			return partialResult(ids, start, end, upserted)
		}
	}
	return nil
}

// partialResult partitions ids into inserted and failed-or-skipped for a
// bulk create that stopped inside the batch [start, end).
func partialResult(ids []string, start, end int, upserted map[int]struct{}) *types.PartialCreateError {
	perr := &types.PartialCreateError{
		InsertedIDs: append([]string(nil), ids[:start]...),
	}
	for i := start; i < end; i++ {
		if _, ok := upserted[i-start]; ok {
			perr.InsertedIDs = append(perr.InsertedIDs, ids[i])
		} else {
			perr.FailedIDs = append(perr.FailedIDs, ids[i])
		}
	}
	perr.FailedIDs = append(perr.FailedIDs, ids[end:]...)
	return perr
}

// UpdateByIDs applies op to the documents in ids matching base, chunking
// the membership predicate.
func (b *Backend) UpdateByIDs(ctx context.Context, ids []string, base types.Filter, op *types.WriteOp) error {
	sctx := b.ctx(ctx)
	update := lowerWriteOp(op)
	for _, chunk := range chunkIDs(ids, consts.MongoMaxInIdentifiers) {
		filter := lowerFilter(base)
		filter[consts.FieldInternalID] = bson.M{"$in": chunk}
		if _, err := b.coll.UpdateMany(sctx, filter, update); err != nil {
			return err
		}
	}
	return nil
}

// DeleteByIDs hard-removes the documents in ids matching base.
func (b *Backend) DeleteByIDs(ctx context.Context, ids []string, base types.Filter) error {
	sctx := b.ctx(ctx)
	for _, chunk := range chunkIDs(ids, consts.MongoMaxInIdentifiers) {
		filter := lowerFilter(base)
		filter[consts.FieldInternalID] = bson.M{"$in": chunk}
		if _, err := b.coll.DeleteMany(sctx, filter); err != nil {
			return err
		}
	}
	return nil
}

// lowerWriteOp translates the neutral write descriptor into mongo update
// operators.
func lowerWriteOp(op *types.WriteOp) bson.M {
	update := bson.M{}
	if len(op.Set) > 0 {
		update["$set"] = bson.M(op.Set)
	}
	if len(op.SetOnInsert) > 0 {
		update["$setOnInsert"] = bson.M(op.SetOnInsert)
	}
	if len(op.Inc) > 0 {
		inc := bson.M{}
		for k, v := range op.Inc {
			inc[k] = v
		}
		update["$inc"] = inc
	}
	if len(op.Unset) > 0 {
		unset := bson.M{}
		for _, k := range op.Unset {
			unset[k] = ""
		}
		update["$unset"] = unset
	}
	if len(op.Push) > 0 {
		push := bson.M{}
		for k, spec := range op.Push {
			each := bson.M{"$each": bson.A(spec.Values)}
			if spec.KeepLast > 0 {
				each["$slice"] = -spec.KeepLast
			}
			push[k] = each
		}
		update["$push"] = push
	}
	if len(op.CurrentDate) > 0 {
		update["$currentDate"] = currentDateDoc(op.CurrentDate)
	}
	return update
}

func currentDateDoc(fields []string) bson.M {
	cd := bson.M{}
	for _, k := range fields {
		cd[k] = true
	}
	return cd
}

func withoutInternalID(doc types.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == consts.FieldInternalID {
			continue
		}
		out[k] = v
	}
	return out
}

func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		chunks = append(chunks, ids[start:min(start+size, len(ids))])
	}
	return chunks
}
