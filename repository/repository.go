// Package repository implements a database-agnostic document repository:
// one CRUD-plus-query contract over entities addressed by a string
// identity, realized against pluggable persistence backends. The
// repository automates identity generation, scope enforcement, soft
// deletion, timestamps, version counters and write-trace attribution, so
// business code writes plain value maps while the storage layer guarantees
// the metadata invariants.
package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/logger"
	"github.com/forbearing/docrepo/stream"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
)

// Repository is the public operation surface. It holds no mutable state
// beyond the immutable resolved configuration and the optional bound
// session handle; instances without a bound handle are safe to share
// across goroutines.
type Repository struct {
	backend types.Backend
	rc      *resolved
}

// New wires a backend adapter and options into a repository. Configuration
// problems fail here, synchronously, before any backend I/O.
func New(backend types.Backend, opts *Options) (*Repository, error) {
	if backend == nil {
		return nil, errors.WithStack(ErrNilBackend)
	}
	rc, err := resolve(opts, backend.Capabilities())
	if err != nil {
		return nil, err
	}
	return &Repository{backend: backend, rc: rc}, nil
}

// callOptions collects per-call settings.
type callOptions struct {
	projection []string
	orderBy    []types.SortField
	mergeTrace types.TraceContext
	breach     *ScopeBreachPolicy
}

// Option adjusts a single repository call.
type Option func(*callOptions)

// WithProjection restricts read results to the named attributes. The
// identity attribute is synthesized when requested.
func WithProjection(fields ...string) Option {
	return func(co *callOptions) { co.projection = fields }
}

// WithOrderBy sets the result ordering. The backend identity is appended
// as the final tiebreaker when absent.
func WithOrderBy(fields ...types.SortField) Option {
	return func(co *callOptions) { co.orderBy = fields }
}

// WithMergeTrace merges extra attribution into the trace record of this
// call. Merging onto an empty construction-time context enables tracing
// for this single call.
func WithMergeTrace(tc types.TraceContext) Option {
	return func(co *callOptions) { co.mergeTrace = tc }
}

// WithOnScopeBreach overrides the breach policy for this call.
func WithOnScopeBreach(p ScopeBreachPolicy) Option {
	return func(co *callOptions) { co.breach = &p }
}

func applyCallOptions(opts []Option) *callOptions {
	co := &callOptions{}
	for _, o := range opts {
		o(co)
	}
	return co
}

func (co *callOptions) policy(rc *resolved) ScopeBreachPolicy {
	if co.breach != nil {
		return *co.breach
	}
	return rc.onBreach
}

// GetByID returns the entity of the given identity when it matches the
// active scope and is not soft-deleted; (nil, nil) otherwise.
func (r *Repository) GetByID(ctx context.Context, id string, opts ...Option) (types.Entity, error) {
	if len(id) == 0 {
		return nil, nil
	}
	co := applyCallOptions(opts)
	filter := r.rc.constraints()
	filter[consts.FieldInternalID] = id
	doc, err := r.backend.FindOne(ctx, filter, &types.ReadOptions{Projection: r.rc.backendProjection(co.projection)})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return r.rc.mapOut(doc, co.projection), nil
}

// GetByIDs partitions the input identities into found entities and missing
// identities. The partitioning is total over the input; notFound preserves
// the input order, the order of found is unspecified.
func (r *Repository) GetByIDs(ctx context.Context, ids []string, opts ...Option) (found []types.Entity, notFound []string, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	co := applyCallOptions(opts)
	docs, err := r.backend.FindByIDs(ctx, ids, r.rc.constraints(), &types.ReadOptions{Projection: r.rc.backendProjection(co.projection)})
	if err != nil {
		return nil, nil, err
	}
	present := make(map[string]struct{}, len(docs))
	found = make([]types.Entity, 0, len(docs))
	for _, doc := range docs {
		if id, ok := doc[consts.FieldInternalID].(string); ok {
			present[id] = struct{}{}
		}
		found = append(found, r.rc.mapOut(doc, co.projection))
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			notFound = append(notFound, id)
		}
	}
	return found, notFound, nil
}

// Create persists a new entity: the identity is generated, managed
// attributes are stripped, scope values are validated and stamped, and the
// metadata layers are applied. It returns the new identity.
func (r *Repository) Create(ctx context.Context, e types.Entity, opts ...Option) (string, error) {
	ids, err := r.CreateMany(ctx, []types.Entity{e}, opts...)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateMany persists the given entities and returns their identities in
// input order. On any non-full success it fails with a
// *types.PartialCreateError partitioning the pre-generated identities into
// inserted and failed-or-skipped.
func (r *Repository) CreateMany(ctx context.Context, entities []types.Entity, opts ...Option) ([]string, error) {
	if len(entities) == 0 {
		return []string{}, nil
	}
	co := applyCallOptions(opts)

	ids := make([]string, len(entities))
	docs := make([]types.Document, len(entities))
	op := r.rc.buildWriteOp(consts.WriteCreate, types.Update{}, co.mergeTrace)
	for i, e := range entities {
		clean := sanitizeMap(e)
		if err := r.rc.checkCreateScope(clean); err != nil {
			return nil, err
		}
		ids[i] = r.rc.generateID(r.backend)
		doc := r.rc.mapIn(clean, ids[i])
		for k, v := range op.SetOnInsert {
			doc[k] = v
		}
		docs[i] = doc
	}

	if err := r.backend.InsertMany(ctx, ids, docs, op.CurrentDate); err != nil {
		logger.Repo.With("phase", string(consts.PHASE_CREATE_MANY), "backend", r.backend.Name()).Warnw("bulk create failed", "count", len(ids), "error", err)
		return nil, err
	}
	return ids, nil
}

// Update applies a partial update to one entity. A missing identity is a
// success with no effect. Touching managed or scope attributes fails
// synchronously before any backend call.
func (r *Repository) Update(ctx context.Context, id string, u types.Update, opts ...Option) error {
	return r.UpdateMany(ctx, []string{id}, u, opts...)
}

// UpdateMany applies the same partial update to every given identity.
// Missing identities are skipped; membership predicates are chunked by the
// adapter.
func (r *Repository) UpdateMany(ctx context.Context, ids []string, u types.Update, opts ...Option) error {
	if err := r.rc.validateUpdate(u); err != nil {
		return err
	}
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	co := applyCallOptions(opts)
	op := r.rc.buildWriteOp(consts.WriteUpdate, u, co.mergeTrace)
	if op.IsZero() {
		return nil
	}
	return r.backend.UpdateByIDs(ctx, ids, r.rc.constraints(), op)
}

// Delete removes one entity: a soft-delete mark with full metadata
// enrichment when soft deletion is enabled, a hard removal otherwise.
// A missing identity is a success.
func (r *Repository) Delete(ctx context.Context, id string, opts ...Option) error {
	return r.DeleteMany(ctx, []string{id}, opts...)
}

// DeleteMany removes the given entities, see Delete.
func (r *Repository) DeleteMany(ctx context.Context, ids []string, opts ...Option) error {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	co := applyCallOptions(opts)

	if !r.rc.softDelete {
		return r.backend.DeleteByIDs(ctx, ids, r.rc.constraints())
	}

	op := r.rc.buildWriteOp(consts.WriteDelete, types.Update{}, co.mergeTrace)
	op.Set = ensure(op.Set)
	op.Set[r.rc.softDeleteKey] = true
	// The not-deleted constraint keeps the mark idempotent: an already
	// deleted document is not bumped again.
	return r.backend.UpdateByIDs(ctx, ids, r.rc.constraints(), op)
}

// Find returns a lazy stream over the entities matching filter, ordered by
// backend identity ascending unless overridden. The stream is a linear
// resource: it can be consumed exactly once.
func (r *Repository) Find(filter types.Filter, opts ...Option) *stream.Stream[types.Entity] {
	co := applyCallOptions(opts)
	breached, err := r.rc.breachCheck(filter, co.policy(r.rc))
	if err != nil {
		return stream.Fail[types.Entity](err)
	}
	if breached {
		return stream.Of[types.Entity]()
	}

	constrained := r.rc.applyConstraints(filter)
	ro := &types.ReadOptions{
		Sort:       normalizeOrder(co.orderBy),
		Projection: r.rc.backendProjection(co.projection),
	}
	return stream.New(func(ctx context.Context) (stream.Next[types.Entity], func(context.Context) error, error) {
		it, err := r.backend.Find(ctx, constrained, ro)
		if err != nil {
			return nil, nil, err
		}
		next := func(ctx context.Context) (types.Entity, error) {
			doc, err := it.Next(ctx)
			if err != nil {
				if errors.Is(err, types.ErrIteratorDone) {
					return nil, stream.ErrDone
				}
				return nil, err
			}
			return r.rc.mapOut(doc, co.projection), nil
		}
		return next, it.Close, nil
	})
}

// FindBySpec is Find over a composed specification.
func (r *Repository) FindBySpec(s Specification, opts ...Option) *stream.Stream[types.Entity] {
	return r.Find(specFilter(s), opts...)
}

// FindPage reads one page of an ordered result set. The cursor is the
// opaque token of the previous page's last item; an unknown or out-of-scope
// cursor fails with ErrInvalidCursor. limit < 1 yields an empty page.
func (r *Repository) FindPage(ctx context.Context, filter types.Filter, limit int, cursor string, opts ...Option) (*types.Page, error) {
	co := applyCallOptions(opts)
	breached, err := r.rc.breachCheck(filter, co.policy(r.rc))
	if err != nil {
		return nil, err
	}
	if breached || limit < 1 {
		return &types.Page{Items: []types.Entity{}}, nil
	}

	order := normalizeOrder(co.orderBy)
	ro := &types.ReadOptions{
		Sort:       order,
		Limit:      limit + 1,
		Projection: r.rc.backendProjection(co.projection),
	}

	if len(cursor) > 0 {
		cursorFilter := r.rc.constraints()
		cursorFilter[consts.FieldInternalID] = cursor
		after, err := r.backend.FindOne(ctx, cursorFilter, &types.ReadOptions{})
		if err != nil {
			return nil, err
		}
		if after == nil {
			return nil, errors.Wrapf(ErrInvalidCursor, "cursor %q", cursor)
		}
		ro.After = after
		ro.Boundary = boundaryExpr(order, after)
	}

	docs, err := r.backend.FindPage(ctx, r.rc.applyConstraints(filter), ro)
	if err != nil {
		return nil, err
	}

	page := &types.Page{}
	if len(docs) > limit {
		docs = docs[:limit]
		if id, ok := docs[limit-1][consts.FieldInternalID].(string); ok {
			page.NextCursor = id
		}
	}
	page.Items = make([]types.Entity, 0, len(docs))
	for _, doc := range docs {
		page.Items = append(page.Items, r.rc.mapOut(doc, co.projection))
	}
	return page, nil
}

// FindPageBySpec is FindPage over a composed specification.
func (r *Repository) FindPageBySpec(ctx context.Context, s Specification, limit int, cursor string, opts ...Option) (*types.Page, error) {
	return r.FindPage(ctx, specFilter(s), limit, cursor, opts...)
}

// Count returns the number of entities matching filter under the active
// scope. A scope breach yields 0 or an error per policy.
func (r *Repository) Count(ctx context.Context, filter types.Filter, opts ...Option) (int64, error) {
	co := applyCallOptions(opts)
	breached, err := r.rc.breachCheck(filter, co.policy(r.rc))
	if err != nil {
		return 0, err
	}
	if breached {
		return 0, nil
	}
	return r.backend.Count(ctx, r.rc.applyConstraints(filter))
}

// CountBySpec is Count over a composed specification.
func (r *Repository) CountBySpec(ctx context.Context, s Specification, opts ...Option) (int64, error) {
	return r.Count(ctx, specFilter(s), opts...)
}

// WithSession returns a sibling repository bound to the given backend
// session handle. The handle is borrowed; its lifetime belongs to the
// caller.
func (r *Repository) WithSession(handle any) *Repository {
	return &Repository{backend: r.backend.WithSession(handle), rc: r.rc}
}

// WithTransaction returns a sibling repository bound to the given backend
// transaction handle; behavior is otherwise identical.
func (r *Repository) WithTransaction(handle any) *Repository {
	return r.WithSession(handle)
}

// RunTransaction opens a backend transaction, passes a bound sibling
// repository to fn, commits when fn returns nil and rolls back when fn
// returns an error.
func (r *Repository) RunTransaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.backend.RunTransaction(ctx, func(tx types.Backend) error {
		return fn(&Repository{backend: tx, rc: r.rc})
	})
}

// Raw exposes the underlying backend collection handle for operations the
// repository does not cover.
func (r *Repository) Raw() any { return r.backend.Raw() }

// ApplyConstraints augments a user predicate with the scope and, when
// enabled, the soft-delete filter, for use in ad-hoc aggregations.
func (r *Repository) ApplyConstraints(filter types.Filter) types.Filter {
	return r.rc.applyConstraints(filter)
}

// BuildUpdateOperation returns the fully enriched neutral write descriptor
// for a user update, for use in bulk or ad-hoc writes.
func (r *Repository) BuildUpdateOperation(u types.Update, mergeTrace ...types.TraceContext) (*types.WriteOp, error) {
	if err := r.rc.validateUpdate(u); err != nil {
		return nil, err
	}
	var mt types.TraceContext
	if len(mergeTrace) > 0 {
		mt = mergeTrace[0]
	}
	return r.rc.buildWriteOp(consts.WriteUpdate, u, mt), nil
}

// Health checks backend connectivity.
func (r *Repository) Health(ctx context.Context) error {
	return r.backend.Health(ctx)
}

func specFilter(s Specification) types.Filter {
	if s == nil {
		return nil
	}
	return s.Filter()
}

func compactIDs(ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if len(id) > 0 {
			out = append(out, id)
		}
	}
	return out
}
