package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrIteratorDone is returned by DocIterator.Next when the underlying
// cursor is exhausted.
var ErrIteratorDone = errors.New("no more documents in iterator")

// Entity is the public shape of a stored record: a plain attribute map with
// a string-typed identity attribute. The repository owns the managed
// attributes (identity, scope, soft-delete mark, timestamps, version, trace)
// and strips or rejects caller-supplied values for them.
type Entity = map[string]any

// Document is the backend shape of an entity: the entity attributes plus the
// managed metadata, keyed by the backend-internal identity under
// consts.FieldInternalID.
type Document = map[string]any

// Omit marks an attribute as absent. Any value equal to Omit is stripped
// from inputs at arbitrary nesting depth before a write reaches storage;
// nil is preserved as an explicit null.
var Omit = omitted{}

type omitted struct{}

func (omitted) String() string { return "<omit>" }

// Update is a caller-supplied partial update: attributes to set and
// attribute names to remove. The same attribute must not appear in both.
type Update struct {
	Set   map[string]any
	Unset []string
}

// PushSpec appends values to a list attribute. KeepLast > 0 keeps only the
// most recent KeepLast elements (server-side slice on push); zero keeps all.
type PushSpec struct {
	Values   []any
	KeepLast int
}

// WriteOp is the backend-neutral write descriptor produced by the
// enrichment pipeline. Each section maps onto a server-side update operator
// of the target backend.
type WriteOp struct {
	// Set is applied unconditionally.
	Set map[string]any
	// SetOnInsert is applied only when the operation creates a new document.
	SetOnInsert map[string]any
	// Inc applies numeric deltas.
	Inc map[string]int64
	// Unset removes attributes.
	Unset []string
	// Push appends to list attributes.
	Push map[string]PushSpec
	// CurrentDate asks the backend to stamp the named attributes with its
	// own clock.
	CurrentDate []string
}

// IsZero reports whether the descriptor carries no mutation at all.
func (op *WriteOp) IsZero() bool {
	if op == nil {
		return true
	}
	return len(op.Set) == 0 && len(op.SetOnInsert) == 0 && len(op.Inc) == 0 &&
		len(op.Unset) == 0 && len(op.Push) == 0 && len(op.CurrentDate) == 0
}

// Filter is an equality-only predicate: every entry must match exactly.
// Values must be scalars or backend-comparable values. A NotEqual value is
// the single internal exception, used for the soft-delete predicate.
type Filter = map[string]any

// NotEqual is a filter value matching documents whose attribute differs
// from Value. Only the repository itself places it into filters.
type NotEqual struct {
	Value any
}

// TraceContext is caller attribution attached to every traced write, for
// example {"user": "alice", "request_id": "..."}.
type TraceContext = map[string]any

// SortField is one component of a multi-field ordering.
type SortField struct {
	Field string
	Desc  bool
}

// Page is one page of an ordered result set. NextCursor is set iff a
// further page exists; it is the backend identity of the last item.
type Page struct {
	Items      []Entity
	NextCursor string
}

// CondOp enumerates the comparison operators of a boundary condition.
type CondOp int

const (
	// CondEq matches a concrete value exactly.
	CondEq CondOp = iota
	// CondEqNull matches an attribute that is absent or explicitly null.
	CondEqNull
	// CondGt matches values strictly greater than the given concrete value.
	CondGt
	// CondLtOrNull matches values strictly less than the given concrete
	// value, or absent/null.
	CondLtOrNull
	// CondNotNull matches an attribute that is present and non-null,
	// i.e. strictly greater than the null/absent band.
	CondNotNull
	// CondBeforeNull matches values ordered below the null/absent band.
	// On backends without a MinKey sentinel this matches nothing.
	CondBeforeNull
)

func (op CondOp) String() string {
	switch op {
	case CondEq:
		return "eq"
	case CondEqNull:
		return "eq-null"
	case CondGt:
		return "gt"
	case CondLtOrNull:
		return "lt-or-null"
	case CondNotNull:
		return "not-null"
	case CondBeforeNull:
		return "before-null"
	default:
		return fmt.Sprintf("cond(%d)", int(op))
	}
}

// Cond is a single field comparison inside a boundary expression.
type Cond struct {
	Field string
	Op    CondOp
	Value any
}

// Expr is a disjunction of conjunctions of field conditions. It is the
// neutral form of the "after this document" boundary built by the cursor
// engine; each adapter lowers it to its native query syntax.
type Expr struct {
	Or [][]Cond
}

func (e *Expr) String() string {
	if e == nil || len(e.Or) == 0 {
		return "true"
	}
	clauses := make([]string, 0, len(e.Or))
	for _, and := range e.Or {
		conds := make([]string, 0, len(and))
		for _, c := range and {
			conds = append(conds, fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value))
		}
		clauses = append(clauses, "("+strings.Join(conds, " && ")+")")
	}
	return strings.Join(clauses, " || ")
}

// ReadOptions shapes a backend read: ordering, limit, server-side
// projection, and the pagination boundary. After carries the full cursor
// document; Boundary is its lowered exclusive-lower-bound expression.
// Adapters use whichever form their backend supports natively.
type ReadOptions struct {
	Sort       []SortField
	Limit      int
	Projection []string
	After      Document
	Boundary   *Expr
}

// Clock supplies timestamps for the metadata layers.
type Clock func() time.Time

// PartialCreateError reports a bulk create that only partially succeeded.
// InsertedIDs carries the identities confirmed inserted, FailedIDs the
// identities definitively not inserted (failed or skipped). Identities are
// generated before dispatch, so both sets are stable even when the backend
// assigns nothing on failure.
type PartialCreateError struct {
	InsertedIDs []string
	FailedIDs   []string
}

func (e *PartialCreateError) Error() string {
	return fmt.Sprintf("bulk create partially succeeded: %d inserted, %d failed",
		len(e.InsertedIDs), len(e.FailedIDs))
}
