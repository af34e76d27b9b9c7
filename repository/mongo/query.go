package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// FindOne returns the single matching document, or (nil, nil) when absent.
func (b *Backend) FindOne(ctx context.Context, filter types.Filter, opts *types.ReadOptions) (types.Document, error) {
	fo := options.FindOne()
	if proj := lowerProjection(opts); proj != nil {
		fo = fo.SetProjection(proj)
	}
	var doc bson.M
	err := b.coll.FindOne(b.ctx(ctx), lowerFilter(filter), fo).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return types.Document(doc), nil
}

// FindByIDs returns the documents in ids matching base, chunking the
// membership predicate.
func (b *Backend) FindByIDs(ctx context.Context, ids []string, base types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	sctx := b.ctx(ctx)
	fo := options.Find()
	if proj := lowerProjection(opts); proj != nil {
		fo = fo.SetProjection(proj)
	}

	var out []types.Document
	for _, chunk := range chunkIDs(ids, consts.MongoMaxInIdentifiers) {
		filter := lowerFilter(base)
		filter[consts.FieldInternalID] = bson.M{"$in": chunk}
		cur, err := b.coll.Find(sctx, filter, fo)
		if err != nil {
			return nil, err
		}
		var docs []bson.M
		if err = cur.All(sctx, &docs); err != nil {
			return nil, err
		}
		for _, d := range docs {
			out = append(out, types.Document(d))
		}
	}
	return out, nil
}

// Find opens a lazy cursor over the matching documents.
func (b *Backend) Find(ctx context.Context, filter types.Filter, opts *types.ReadOptions) (types.DocIterator, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo = fo.SetSort(lowerSort(opts.Sort))
	}
	if opts.Limit > 0 {
		fo = fo.SetLimit(int64(opts.Limit))
	}
	if proj := lowerProjection(opts); proj != nil {
		fo = fo.SetProjection(proj)
	}
	cur, err := b.coll.Find(b.ctx(ctx), lowerQuery(filter, opts.Boundary), fo)
	if err != nil {
		return nil, err
	}
	return &cursorIterator{cur: cur}, nil
}

// FindPage eagerly reads the page bounded by opts.Boundary.
func (b *Backend) FindPage(ctx context.Context, filter types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	it, err := b.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close(ctx) }()

	var out []types.Document
	for {
		doc, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, types.ErrIteratorDone) {
				return out, nil
			}
			return nil, err
		}
		out = append(out, doc)
	}
}

// Count returns the number of matching documents.
func (b *Backend) Count(ctx context.Context, filter types.Filter) (int64, error) {
	return b.coll.CountDocuments(b.ctx(ctx), lowerFilter(filter))
}

// cursorIterator adapts *mongo.Cursor to types.DocIterator.
type cursorIterator struct {
	cur *mongo.Cursor
}

func (it *cursorIterator) Next(ctx context.Context) (types.Document, error) {
	if !it.cur.Next(ctx) {
		if err := it.cur.Err(); err != nil {
			return nil, err
		}
		return nil, types.ErrIteratorDone
	}
	var doc bson.M
	if err := it.cur.Decode(&doc); err != nil {
		return nil, err
	}
	return types.Document(doc), nil
}

func (it *cursorIterator) Close(ctx context.Context) error {
	return it.cur.Close(ctx)
}

// lowerFilter translates the neutral equality filter, including the
// soft-delete inequality marker.
func lowerFilter(filter types.Filter) bson.M {
	out := make(bson.M, len(filter))
	for k, v := range filter {
		if ne, ok := v.(types.NotEqual); ok {
			out[k] = bson.M{"$ne": ne.Value}
			continue
		}
		out[k] = v
	}
	return out
}

// lowerQuery combines the base filter with the pagination boundary.
func lowerQuery(filter types.Filter, boundary *types.Expr) bson.M {
	base := lowerFilter(filter)
	if boundary == nil || len(boundary.Or) == 0 {
		return base
	}
	return bson.M{"$and": bson.A{base, lowerExpr(boundary)}}
}

// lowerExpr translates the boundary expression into a disjunction of
// conjunctions. Null-band semantics: equality against the band matches
// absent or explicit null; ascending past the band requires a present,
// non-null value; descending below the band bottoms out at MinKey.
func lowerExpr(e *types.Expr) bson.M {
	clauses := make(bson.A, 0, len(e.Or))
	for _, and := range e.Or {
		conds := make(bson.A, 0, len(and))
		for _, c := range and {
			conds = append(conds, lowerCond(c))
		}
		clauses = append(clauses, bson.M{"$and": conds})
	}
	return bson.M{"$or": clauses}
}

func lowerCond(c types.Cond) bson.M {
	switch c.Op {
	case types.CondEq:
		return bson.M{c.Field: c.Value}
	case types.CondEqNull:
		return bson.M{c.Field: nil}
	case types.CondGt:
		return bson.M{c.Field: bson.M{"$gt": c.Value}}
	case types.CondLtOrNull:
		return bson.M{"$or": bson.A{
			bson.M{c.Field: bson.M{"$lt": c.Value}},
			bson.M{c.Field: nil},
		}}
	case types.CondNotNull:
		return bson.M{c.Field: bson.M{"$exists": true, "$ne": nil}}
	case types.CondBeforeNull:
		return bson.M{c.Field: bson.M{"$lt": bson.MinKey{}}}
	default:
		return bson.M{}
	}
}

func lowerSort(sort []types.SortField) bson.D {
	out := make(bson.D, 0, len(sort))
	for _, f := range sort {
		dir := 1
		if f.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	return out
}

func lowerProjection(opts *types.ReadOptions) bson.D {
	if opts == nil || len(opts.Projection) == 0 {
		return nil
	}
	out := make(bson.D, 0, len(opts.Projection)+1)
	out = append(out, bson.E{Key: consts.FieldInternalID, Value: 1})
	for _, k := range opts.Projection {
		if k == consts.FieldInternalID {
			continue
		}
		out = append(out, bson.E{Key: k, Value: 1})
	}
	return out
}
