package repository_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
)

// fakeBackend is an in-memory types.Backend used to exercise the facade
// end to end: it evaluates the neutral filters, boundary expressions and
// write descriptors the same way a real adapter lowers them.
type fakeBackend struct {
	mu   sync.Mutex
	docs map[string]types.Document
	caps types.Capabilities

	// failCreateIndex injects a conflict at the given 0-based position of
	// the next InsertMany call; -1 disables injection.
	failCreateIndex int

	idSeq       int
	updateCalls int
	insertCalls int
}

var _ types.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		docs:            make(map[string]types.Document),
		failCreateIndex: -1,
		caps: types.Capabilities{
			SliceOnPush:      true,
			ServerTimestamp:  true,
			MaxBatchWrites:   1000,
			MaxInIdentifiers: 100,
		},
	}
}

func (b *fakeBackend) Name() string                   { return "fake" }
func (b *fakeBackend) Capabilities() types.Capabilities { return b.caps }
func (b *fakeBackend) Raw() any                       { return b.docs }
func (b *fakeBackend) Health(context.Context) error   { return nil }

func (b *fakeBackend) GenerateID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idSeq++
	return fmt.Sprintf("fake-%06d", b.idSeq)
}

func (b *fakeBackend) InsertMany(_ context.Context, ids []string, docs []types.Document, currentDate []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insertCalls++

	for i, id := range ids {
		_, exists := b.docs[id]
		if exists || i == b.failCreateIndex {
			return &types.PartialCreateError{
				InsertedIDs: append([]string(nil), ids[:i]...),
				FailedIDs:   append([]string(nil), ids[i:]...),
			}
		}
		doc := cloneDoc(docs[i])
		for _, k := range currentDate {
			doc[k] = time.Now().UTC()
		}
		b.docs[id] = doc
	}
	return nil
}

func (b *fakeBackend) UpdateByIDs(_ context.Context, ids []string, base types.Filter, op *types.WriteOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateCalls++

	for _, id := range ids {
		doc, ok := b.docs[id]
		if !ok || !matchesFilter(doc, base) {
			continue
		}
		applyWriteOp(doc, op)
	}
	return nil
}

func (b *fakeBackend) DeleteByIDs(_ context.Context, ids []string, base types.Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if doc, ok := b.docs[id]; ok && matchesFilter(doc, base) {
			delete(b.docs, id)
		}
	}
	return nil
}

func (b *fakeBackend) FindByIDs(_ context.Context, ids []string, base types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Document
	for _, id := range ids {
		if doc, ok := b.docs[id]; ok && matchesFilter(doc, base) {
			out = append(out, projectDoc(doc, opts))
		}
	}
	return out, nil
}

func (b *fakeBackend) FindOne(_ context.Context, filter types.Filter, opts *types.ReadOptions) (types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := filter[consts.FieldInternalID].(string); ok {
		doc, ok := b.docs[id]
		if !ok || !matchesFilter(doc, withoutKey(filter, consts.FieldInternalID)) {
			return nil, nil
		}
		return projectDoc(doc, opts), nil
	}
	for _, doc := range b.sortedDocs(nil) {
		if matchesFilter(doc, filter) {
			return projectDoc(doc, opts), nil
		}
	}
	return nil, nil
}

func (b *fakeBackend) Find(_ context.Context, filter types.Filter, opts *types.ReadOptions) (types.DocIterator, error) {
	docs, err := b.collect(filter, opts)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{docs: docs}, nil
}

func (b *fakeBackend) FindPage(_ context.Context, filter types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	return b.collect(filter, opts)
}

func (b *fakeBackend) Count(_ context.Context, filter types.Filter) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, doc := range b.docs {
		if matchesFilter(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (b *fakeBackend) WithSession(any) types.Backend { return b }

// RunTransaction clones the store, runs fn against the clone, and swaps it
// in on success. An error from fn discards the clone.
func (b *fakeBackend) RunTransaction(_ context.Context, fn func(tx types.Backend) error) error {
	b.mu.Lock()
	clone := &fakeBackend{
		docs:            make(map[string]types.Document, len(b.docs)),
		caps:            b.caps,
		failCreateIndex: b.failCreateIndex,
		idSeq:           b.idSeq,
	}
	for id, doc := range b.docs {
		clone.docs[id] = cloneDoc(doc)
	}
	b.mu.Unlock()

	if err := fn(clone); err != nil {
		return err
	}

	b.mu.Lock()
	b.docs = clone.docs
	b.idSeq = clone.idSeq
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) collect(filter types.Filter, opts *types.ReadOptions) ([]types.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.Document
	for _, doc := range b.sortedDocs(opts.Sort) {
		if !matchesFilter(doc, filter) {
			continue
		}
		if opts.Boundary != nil && !evalExpr(doc, opts.Boundary) {
			continue
		}
		out = append(out, projectDoc(doc, opts))
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// sortedDocs returns the documents ordered by sort, identity ascending
// when sort is empty.
func (b *fakeBackend) sortedDocs(sortFields []types.SortField) []types.Document {
	docs := make([]types.Document, 0, len(b.docs))
	for _, doc := range b.docs {
		docs = append(docs, doc)
	}
	if len(sortFields) == 0 {
		sortFields = []types.SortField{{Field: consts.FieldInternalID}}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range sortFields {
			c := compareVals(docs[i][f.Field], docs[j][f.Field])
			if f.Desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return docs
}

type sliceIterator struct {
	docs []types.Document
	pos  int
}

func (it *sliceIterator) Next(context.Context) (types.Document, error) {
	if it.pos >= len(it.docs) {
		return nil, types.ErrIteratorDone
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *sliceIterator) Close(context.Context) error { return nil }

func applyWriteOp(doc types.Document, op *types.WriteOp) {
	for k, v := range op.Set {
		doc[k] = v
	}
	for k, v := range op.Inc {
		cur, _ := doc[k].(int64)
		doc[k] = cur + v
	}
	for _, k := range op.Unset {
		delete(doc, k)
	}
	for k, spec := range op.Push {
		list, _ := doc[k].([]any)
		list = append(list, spec.Values...)
		if spec.KeepLast > 0 && len(list) > spec.KeepLast {
			list = list[len(list)-spec.KeepLast:]
		}
		doc[k] = list
	}
	for _, k := range op.CurrentDate {
		doc[k] = time.Now().UTC()
	}
}

func cloneDoc(doc types.Document) types.Document {
	out := make(types.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func withoutKey(filter types.Filter, key string) types.Filter {
	out := make(types.Filter, len(filter))
	for k, v := range filter {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func projectDoc(doc types.Document, opts *types.ReadOptions) types.Document {
	clone := cloneDoc(doc)
	if opts == nil || len(opts.Projection) == 0 {
		return clone
	}
	out := types.Document{consts.FieldInternalID: clone[consts.FieldInternalID]}
	for _, k := range opts.Projection {
		if v, ok := clone[k]; ok {
			out[k] = v
		}
	}
	return out
}

func matchesFilter(doc types.Document, filter types.Filter) bool {
	for k, v := range filter {
		if ne, ok := v.(types.NotEqual); ok {
			if dv, present := doc[k]; present && dv == ne.Value {
				return false
			}
			continue
		}
		dv, present := doc[k]
		if !present || dv != v {
			return false
		}
	}
	return true
}

func evalExpr(doc types.Document, expr *types.Expr) bool {
	for _, and := range expr.Or {
		ok := true
		for _, c := range and {
			if !evalCond(doc, c) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func evalCond(doc types.Document, c types.Cond) bool {
	v, present := doc[c.Field]
	isNull := !present || v == nil
	switch c.Op {
	case types.CondEq:
		return !isNull && compareVals(v, c.Value) == 0
	case types.CondEqNull:
		return isNull
	case types.CondGt:
		return !isNull && compareVals(v, c.Value) > 0
	case types.CondLtOrNull:
		return isNull || compareVals(v, c.Value) < 0
	case types.CondNotNull:
		return !isNull
	case types.CondBeforeNull:
		return false
	default:
		return false
	}
}

// compareVals orders values the way a document store collates them: the
// null band first, then numbers, strings, booleans, timestamps.
func compareVals(a, b any) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 0:
		return 0
	case 1:
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 2:
		as, bs := a.(string), b.(string)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	case 3:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case 4:
		at, bt := a.(time.Time), b.(time.Time)
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func rankOf(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 1
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
