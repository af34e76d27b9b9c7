package repository

import (
	"time"

	"github.com/forbearing/docrepo/config"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
)

// TimestampMode selects how creation/update/deletion timestamps are stamped.
type TimestampMode int

const (
	// TimestampsOff disables timestamp management.
	TimestampsOff TimestampMode = iota
	// TimestampsClock stamps with the configured client clock.
	TimestampsClock
	// TimestampsServer asks the backend to stamp with its own clock.
	TimestampsServer
)

// TraceStrategy selects how per-write trace records are persisted.
type TraceStrategy string

const (
	// TraceLatest overwrites a single trace value per write.
	TraceLatest TraceStrategy = "latest"
	// TraceBounded appends to a list capped at TraceLimit, oldest evicted.
	// Requires a backend with slice-on-push.
	TraceBounded TraceStrategy = "bounded"
	// TraceUnbounded appends to a list without bound.
	TraceUnbounded TraceStrategy = "unbounded"
)

// ScopeBreachPolicy selects how a read filter contradicting the scope is
// handled.
type ScopeBreachPolicy int

const (
	// BreachEmpty silently yields an empty result. This is the default.
	BreachEmpty ScopeBreachPolicy = iota
	// BreachError fails the operation with ErrScopeBreach.
	BreachError
)

// Options parameterizes a repository. The zero value, combined with the
// library-wide defaults of the `repository` config section, is a working
// configuration. Options is consumed at construction; the repository keeps
// an immutable resolved copy.
type Options struct {
	// IDKey is the public identity attribute, default "id".
	IDKey string
	// IDGenerator supplies caller-side identities. Nil means the backend's
	// native generator.
	IDGenerator func() string
	// MirrorID additionally stores the identity under IDKey as an ordinary
	// attribute of the persisted document.
	MirrorID bool

	// SoftDelete marks documents deleted instead of removing them. Nil
	// falls back to the config default.
	SoftDelete *bool
	// SoftDeleteKey overrides the reserved default "_deleted".
	SoftDeleteKey string

	// Timestamps selects the timestamp mode. Nil falls back to the config
	// default (clock when enabled).
	Timestamps *TimestampMode
	// Clock supplies client-side timestamps, default time.Now in UTC.
	Clock types.Clock
	// CreatedAtKey, UpdatedAtKey and DeletedAtKey override the reserved
	// default names; a user-chosen name becomes a visible attribute.
	CreatedAtKey string
	UpdatedAtKey string
	DeletedAtKey string

	// Versioning maintains a monotonic per-document version counter. Nil
	// falls back to the config default.
	Versioning *bool
	// VersionKey overrides the reserved default "_version".
	VersionKey string

	// TraceStrategy selects trace persistence, default from config
	// ("latest"). TraceLimit is required for TraceBounded.
	TraceStrategy TraceStrategy
	TraceLimit    int
	// TraceKey overrides the reserved default "_trace". The trace key is
	// reserved even when no trace context is configured.
	TraceKey string
	// TraceContext is attribution merged into every traced write.
	TraceContext types.TraceContext

	// Scope is the immutable attribute map this repository is bound to.
	// It filters every read and stamps every create. Values must be
	// scalar primitives.
	Scope map[string]any
	// OnScopeBreach is the default breach policy for reads.
	OnScopeBreach ScopeBreachPolicy
}

// resolved is the immutable configuration a repository operates on.
type resolved struct {
	idKey    string
	idGen    func() string
	mirrorID bool

	softDelete    bool
	softDeleteKey string

	tsMode       TimestampMode
	clock        types.Clock
	createdAtKey string
	updatedAtKey string
	deletedAtKey string

	versioning bool
	versionKey string

	traceStrategy TraceStrategy
	traceLimit    int
	traceKey      string
	traceCtx      types.TraceContext

	scope    map[string]any
	onBreach ScopeBreachPolicy

	// readonly are attribute names rejected on update set/unset.
	readonly map[string]struct{}
	// hidden are meta keys stored under a reserved default name, stripped
	// from read results.
	hidden map[string]struct{}
}

// resolve validates opts against the backend capabilities and computes the
// readonly and hidden key sets.
func resolve(opts *Options, caps types.Capabilities) (*resolved, error) {
	if opts == nil {
		opts = &Options{}
	}
	defaults := config.App.Repository

	rc := &resolved{
		idKey:    opts.IDKey,
		idGen:    opts.IDGenerator,
		mirrorID: opts.MirrorID,

		softDeleteKey: opts.SoftDeleteKey,
		clock:         opts.Clock,
		createdAtKey:  opts.CreatedAtKey,
		updatedAtKey:  opts.UpdatedAtKey,
		deletedAtKey:  opts.DeletedAtKey,
		versionKey:    opts.VersionKey,
		traceKey:      opts.TraceKey,
		traceStrategy: opts.TraceStrategy,
		traceLimit:    opts.TraceLimit,
		traceCtx:      opts.TraceContext,
		onBreach:      opts.OnScopeBreach,
	}

	if len(rc.idKey) == 0 {
		rc.idKey = consts.DefaultIDKey
	}
	if rc.clock == nil {
		rc.clock = func() time.Time { return time.Now().UTC() }
	}

	if opts.SoftDelete != nil {
		rc.softDelete = *opts.SoftDelete
	} else {
		rc.softDelete = defaults.SoftDelete
	}
	if len(rc.softDeleteKey) == 0 {
		rc.softDeleteKey = consts.DefaultSoftDeleteKey
	}

	if opts.Timestamps != nil {
		rc.tsMode = *opts.Timestamps
	} else if defaults.Timestamps {
		rc.tsMode = TimestampsClock
	}
	if rc.tsMode == TimestampsServer && !caps.ServerTimestamp {
		rc.tsMode = TimestampsClock
	}
	if len(rc.createdAtKey) == 0 {
		rc.createdAtKey = consts.DefaultCreatedAtKey
	}
	if len(rc.updatedAtKey) == 0 {
		rc.updatedAtKey = consts.DefaultUpdatedAtKey
	}
	if len(rc.deletedAtKey) == 0 {
		rc.deletedAtKey = consts.DefaultDeletedAtKey
	}

	if opts.Versioning != nil {
		rc.versioning = *opts.Versioning
	} else {
		rc.versioning = defaults.Versioning
	}
	if len(rc.versionKey) == 0 {
		rc.versionKey = consts.DefaultVersionKey
	}

	if len(rc.traceStrategy) == 0 {
		rc.traceStrategy = TraceStrategy(defaults.TraceStrategy)
	}
	if len(rc.traceStrategy) == 0 {
		rc.traceStrategy = TraceLatest
	}
	if rc.traceLimit == 0 {
		rc.traceLimit = defaults.TraceLimit
	}
	if len(rc.traceKey) == 0 {
		rc.traceKey = consts.DefaultTraceKey
	}

	switch rc.traceStrategy {
	case TraceLatest, TraceUnbounded:
	case TraceBounded:
		if rc.traceLimit <= 0 {
			return nil, configErrorf("bounded trace strategy requires a positive trace limit")
		}
		if !caps.SliceOnPush {
			return nil, configErrorf("bounded trace strategy is not supported by this backend")
		}
	default:
		return nil, configErrorf("unknown trace strategy %q", rc.traceStrategy)
	}

	if err := rc.validateKeys(); err != nil {
		return nil, err
	}

	if len(opts.Scope) > 0 {
		rc.scope = make(map[string]any, len(opts.Scope))
		for k, v := range opts.Scope {
			if _, ok := rc.readonly[k]; ok {
				return nil, configErrorf("scope key %q is a managed attribute", k)
			}
			if !isScalar(v) {
				return nil, configErrorf("scope value for %q must be a scalar primitive", k)
			}
			rc.scope[k] = v
		}
	}

	return rc, nil
}

// validateKeys checks managed-key distinctness and computes the readonly
// and hidden sets.
func (rc *resolved) validateKeys() error {
	managed := []string{rc.idKey, consts.FieldInternalID, rc.traceKey}
	if rc.softDelete {
		managed = append(managed, rc.softDeleteKey)
	}
	if rc.tsMode != TimestampsOff {
		managed = append(managed, rc.createdAtKey, rc.updatedAtKey, rc.deletedAtKey)
	}
	if rc.versioning {
		managed = append(managed, rc.versionKey)
	}

	rc.readonly = make(map[string]struct{}, len(managed))
	for _, k := range managed {
		if _, dup := rc.readonly[k]; dup {
			return configErrorf("managed attribute name %q configured more than once", k)
		}
		rc.readonly[k] = struct{}{}
	}

	rc.hidden = make(map[string]struct{})
	hiddenDefaults := map[string]string{
		rc.softDeleteKey: consts.DefaultSoftDeleteKey,
		rc.createdAtKey:  consts.DefaultCreatedAtKey,
		rc.updatedAtKey:  consts.DefaultUpdatedAtKey,
		rc.deletedAtKey:  consts.DefaultDeletedAtKey,
		rc.versionKey:    consts.DefaultVersionKey,
		rc.traceKey:      consts.DefaultTraceKey,
	}
	for key, reserved := range hiddenDefaults {
		if key == reserved {
			rc.hidden[key] = struct{}{}
		}
	}
	return nil
}

// isHidden reports whether a persisted key must be stripped from reads.
func (rc *resolved) isHidden(name string) bool {
	_, ok := rc.hidden[name]
	return ok
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
