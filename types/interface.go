package types

import (
	"context"

	"github.com/forbearing/docrepo/types/consts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StandardLogger interface provides standard logging methods for custom logger implementations.
type StandardLogger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// StructuredLogger interface provides structured logging methods with key-value pairs.
// The 'w' suffix stands for "with" (structured data).
type StructuredLogger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Fatalw(msg string, keysAndValues ...any)
}

// ZapLogger interface provides zap-specific logging methods with structured fields.
// The 'z' suffix distinguishes these methods from other logging interfaces.
type ZapLogger interface {
	Debugz(msg string, fields ...zap.Field)
	Infoz(msg string, fields ...zap.Field)
	Warnz(msg string, fields ...zap.Field)
	Errorz(msg string, fields ...zap.Field)
	Fatalz(msg string, fields ...zap.Field)
}

// Logger interface combines all logging capabilities into a unified interface.
//
// Key features:
//   - Standard logging (Debug, Info, Warn, Error, Fatal)
//   - Structured logging with key-value pairs (Debugw, Infow, etc.)
//   - Zap-specific structured logging with typed fields
//   - Phase-aware logging for repository operations
type Logger interface {
	With(fields ...string) Logger

	WithObject(name string, obj zapcore.ObjectMarshaler) Logger
	WithArray(name string, arr zapcore.ArrayMarshaler) Logger

	// WithPhase tags the logger with the repository operation and the
	// backend collection it runs against.
	WithPhase(phase consts.Phase, collection string) Logger

	StandardLogger
	StructuredLogger
	ZapLogger
}

// Capabilities describes what a backend can do server-side. The config
// resolver and the enrichment pipeline consult it at construction time.
type Capabilities struct {
	// SliceOnPush reports whether the backend can cap a list while
	// appending to it (push-with-slice). Required for the bounded trace
	// strategy.
	SliceOnPush bool
	// ServerTimestamp reports whether the backend can stamp an attribute
	// with its own clock.
	ServerTimestamp bool
	// MaxBatchWrites is the maximum number of writes per dispatched batch.
	MaxBatchWrites int
	// MaxInIdentifiers is the maximum number of identities per membership
	// predicate.
	MaxInIdentifiers int
}

// DocIterator walks a lazy backend result set. Next returns ErrIteratorDone
// after the last document. Close releases the underlying cursor and is safe
// to call more than once.
type DocIterator interface {
	Next(ctx context.Context) (Document, error)
	Close(ctx context.Context) error
}

// Backend is the neutral operation surface a persistence adapter implements.
// The repository facade enriches writes into WriteOp descriptors and applies
// scope and soft-delete constraints to filters before calling into it; the
// adapter translates descriptors and read requests into backend-native
// operations, enforcing chunking and atomic-batch boundaries transparently.
//
// Implementations must be safe for concurrent use when no session or
// transaction handle is bound.
type Backend interface {
	// Name identifies the backend kind ("mongo", "firestore") for logging.
	Name() string

	// Capabilities reports the backend's server-side abilities and limits.
	Capabilities() Capabilities

	// GenerateID returns a fresh backend-native identity.
	GenerateID() string

	// InsertMany creates the given documents, one per pre-generated id, in
	// input order. currentDate names attributes the backend should stamp
	// with its own clock at insert time. On any non-full success it returns
	// a *PartialCreateError partitioning ids into inserted and
	// failed-or-skipped.
	InsertMany(ctx context.Context, ids []string, docs []Document, currentDate []string) error

	// UpdateByIDs applies op to every document whose identity is in ids and
	// which matches base. Missing ids are a no-op. Membership predicates
	// are chunked to the backend limit.
	UpdateByIDs(ctx context.Context, ids []string, base Filter, op *WriteOp) error

	// DeleteByIDs hard-removes every document whose identity is in ids and
	// which matches base. Missing ids are a no-op.
	DeleteByIDs(ctx context.Context, ids []string, base Filter) error

	// FindByIDs returns the documents whose identity is in ids and which
	// match base, applying the projection of opts. Order is unspecified.
	FindByIDs(ctx context.Context, ids []string, base Filter, opts *ReadOptions) ([]Document, error)

	// FindOne returns the single document matching filter, or (nil, nil)
	// when absent.
	FindOne(ctx context.Context, filter Filter, opts *ReadOptions) (Document, error)

	// Find opens a lazy cursor over the documents matching filter.
	Find(ctx context.Context, filter Filter, opts *ReadOptions) (DocIterator, error)

	// FindPage eagerly reads up to opts.Limit documents after the boundary
	// of opts, in the order of opts.Sort.
	FindPage(ctx context.Context, filter Filter, opts *ReadOptions) ([]Document, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Health checks backend connectivity.
	Health(ctx context.Context) error

	// WithSession returns a sibling backend bound to the given session or
	// transaction handle. The handle is borrowed, never owned.
	WithSession(handle any) Backend

	// RunTransaction opens a backend transaction and passes a bound sibling
	// to fn. It commits when fn returns nil and rolls back when fn returns
	// an error.
	RunTransaction(ctx context.Context, fn func(tx Backend) error) error

	// Raw exposes the underlying backend collection handle for operations
	// the repository does not cover.
	Raw() any
}
