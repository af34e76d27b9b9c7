package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FindOne returns the single matching document, or (nil, nil) when absent.
func (b *Backend) FindOne(ctx context.Context, filter types.Filter, opts *types.ReadOptions) (types.Document, error) {
	// A filter addressing one identity reads the document directly; a
	// query would cost an index lookup and cannot address ids cheaply.
	if id, ok := filter[consts.FieldInternalID].(string); ok {
		doc, err := b.getDoc(ctx, id)
		if err != nil || doc == nil {
			return nil, err
		}
		rest := withoutKey(filter, consts.FieldInternalID)
		if !matchesFilter(doc, rest) {
			return nil, nil
		}
		return project(doc, opts), nil
	}

	q := b.applyFilter(b.coll.Query, filter).Limit(1)
	q = applySelect(q, opts)
	it := b.docs(ctx, q)
	defer it.Stop()
	snap, err := it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, nil
		}
		return nil, err
	}
	return snapshotDoc(snap), nil
}

// FindByIDs returns the documents in ids matching base, chunking the
// identity membership predicate.
func (b *Backend) FindByIDs(ctx context.Context, ids []string, base types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	var out []types.Document
	for start := 0; start < len(ids); start += consts.FirestoreMaxInIdentifiers {
		end := min(start+consts.FirestoreMaxInIdentifiers, len(ids))
		refs := make([]*firestore.DocumentRef, 0, end-start)
		for _, id := range ids[start:end] {
			refs = append(refs, b.coll.Doc(id))
		}

		q := b.applyFilter(b.coll.Query, base)
		q = q.WhereEntity(firestore.PropertyFilter{Path: firestore.DocumentID, Operator: "in", Value: refs})
		q = applySelect(q, opts)

		it := b.docs(ctx, q)
		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) {
					break
				}
				it.Stop()
				return nil, err
			}
			out = append(out, snapshotDoc(snap))
		}
		it.Stop()
	}
	return out, nil
}

// Find opens a lazy iterator over the matching documents. Pagination uses
// the native start-after cursor with the ordered field values of the
// boundary document.
func (b *Backend) Find(ctx context.Context, filter types.Filter, opts *types.ReadOptions) (types.DocIterator, error) {
	q := b.applyFilter(b.coll.Query, filter)
	for _, f := range opts.Sort {
		dir := firestore.Asc
		if f.Desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(sortPath(f.Field), dir)
	}
	if opts.After != nil && len(opts.Sort) > 0 {
		q = q.StartAfter(cursorValues(opts.Sort, opts.After)...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = applySelect(q, opts)
	return &docIterator{it: b.docs(ctx, q)}, nil
}

// FindPage eagerly reads the page after the boundary document.
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

// Count runs a server-side aggregation count.
func (b *Backend) Count(ctx context.Context, filter types.Filter) (int64, error) {
	q := b.applyFilter(b.coll.Query, filter)
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := res["all"]
	if !ok {
		return 0, errors.New("aggregation result missing count")
	}
	pv, ok := v.(*firestorepb.Value)
	if !ok {
		return 0, errors.Newf("unexpected aggregation value type %T", v)
	}
	return pv.GetIntegerValue(), nil
}

// getDoc reads one document by id, via the bound transaction when set.
func (b *Backend) getDoc(ctx context.Context, id string) (types.Document, error) {
	ref := b.coll.Doc(id)
	var snap *firestore.DocumentSnapshot
	var err error
	if b.tx != nil {
		snap, err = b.tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return snapshotDoc(snap), nil
}

// docs runs a query, through the bound transaction when one is set.
func (b *Backend) docs(ctx context.Context, q firestore.Query) *firestore.DocumentIterator {
	if b.tx != nil {
		return b.tx.Documents(q)
	}
	return q.Documents(ctx)
}

// applyFilter lowers the neutral equality filter onto a query. The
// soft-delete marker lowers to an inequality.
func (b *Backend) applyFilter(q firestore.Query, filter types.Filter) firestore.Query {
	var fs []firestore.EntityFilter
	for k, v := range filter {
		if k == consts.FieldInternalID {
			if id, ok := v.(string); ok {
				fs = append(fs, firestore.PropertyFilter{Path: firestore.DocumentID, Operator: "==", Value: b.coll.Doc(id)})
			}
			continue
		}
		if ne, ok := v.(types.NotEqual); ok {
			fs = append(fs, firestore.PropertyFilter{Path: k, Operator: "!=", Value: ne.Value})
			continue
		}
		fs = append(fs, firestore.PropertyFilter{Path: k, Operator: "==", Value: v})
	}
	if len(fs) == 0 {
		return q
	}
	return q.WhereEntity(firestore.AndFilter{Filters: fs})
}

// docIterator adapts *firestore.DocumentIterator to types.DocIterator.
type docIterator struct {
	it *firestore.DocumentIterator
}

func (d *docIterator) Next(context.Context) (types.Document, error) {
	snap, err := d.it.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, types.ErrIteratorDone
		}
		return nil, err
	}
	return snapshotDoc(snap), nil
}

func (d *docIterator) Close(context.Context) error {
	d.it.Stop()
	return nil
}

// snapshotDoc mirrors the document id into the neutral internal identity
// key.
func snapshotDoc(snap *firestore.DocumentSnapshot) types.Document {
	doc := snap.Data()
	if doc == nil {
		doc = make(types.Document, 1)
	}
	doc[consts.FieldInternalID] = snap.Ref.ID
	return doc
}

func sortPath(field string) string {
	if field == consts.FieldInternalID {
		return firestore.DocumentID
	}
	return field
}

// cursorValues extracts the ordered field values of the boundary document
// for the native start-after cursor.
func cursorValues(sort []types.SortField, after types.Document) []any {
	vals := make([]any, 0, len(sort))
	for _, f := range sort {
		if f.Field == consts.FieldInternalID {
			vals = append(vals, after[consts.FieldInternalID])
			continue
		}
		vals = append(vals, after[f.Field])
	}
	return vals
}

func applySelect(q firestore.Query, opts *types.ReadOptions) firestore.Query {
	if opts == nil || len(opts.Projection) == 0 {
		return q
	}
	paths := make([]string, 0, len(opts.Projection))
	for _, k := range opts.Projection {
		if k == consts.FieldInternalID {
			continue
		}
		paths = append(paths, k)
	}
	return q.Select(paths...)
}

// project applies a projection in process, used after a direct document
// read that bypassed the query path.
func project(doc types.Document, opts *types.ReadOptions) types.Document {
	if opts == nil || len(opts.Projection) == 0 {
		return doc
	}
	out := make(types.Document, len(opts.Projection)+1)
	out[consts.FieldInternalID] = doc[consts.FieldInternalID]
	for _, k := range opts.Projection {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out
}

// matchesFilter evaluates the equality filter in process, used after a
// direct document read.
func matchesFilter(doc types.Document, filter types.Filter) bool {
	for k, v := range filter {
		if ne, ok := v.(types.NotEqual); ok {
			if dv, present := doc[k]; present && dv == ne.Value {
				return false
			}
			continue
		}
		if doc[k] != v {
			return false
		}
	}
	return true
}

func withoutKey(filter types.Filter, key string) types.Filter {
	out := make(types.Filter, len(filter))
	for k, v := range filter {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
