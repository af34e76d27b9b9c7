package consts

// Phase identifies the repository operation for structured logging.
type Phase string

const (
	PHASE_CREATE      Phase = "Create"
	PHASE_CREATE_MANY Phase = "CreateMany"
	PHASE_UPDATE      Phase = "Update"
	PHASE_UPDATE_MANY Phase = "UpdateMany"
	PHASE_DELETE      Phase = "Delete"
	PHASE_DELETE_MANY Phase = "DeleteMany"
	PHASE_GET         Phase = "Get"
	PHASE_GET_MANY    Phase = "GetMany"
	PHASE_FIND        Phase = "Find"
	PHASE_FIND_PAGE   Phase = "FindPage"
	PHASE_COUNT       Phase = "Count"
	PHASE_TRANSACTION Phase = "Transaction"
)

// WriteKind is the kind of write flowing through the enrichment pipeline.
type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
)

// FieldInternalID is the backend-internal identity key of the neutral
// document shape. The mongo adapter stores it natively; the firestore
// adapter mirrors the document id into it on read and strips it on write.
const FieldInternalID = "_id"

// DefaultIDKey is the public identity attribute unless overridden.
const DefaultIDKey = "id"

// Hidden reserved default names for managed metadata. Metadata stored under
// one of these names is stripped from read results; a user-chosen key makes
// the same metadata a visible attribute.
const (
	DefaultSoftDeleteKey = "_deleted"
	DefaultCreatedAtKey  = "_createdAt"
	DefaultUpdatedAtKey  = "_updatedAt"
	DefaultDeletedAtKey  = "_deletedAt"
	DefaultVersionKey    = "_version"
	DefaultTraceKey      = "_trace"
)

// Keys of the per-write trace record.
const (
	TraceOpKey = "_op"
	TraceAtKey = "_at"
)

// Backend chunking limits. All chunking is transparent to callers.
const (
	MongoMaxBatchWrites       = 1000
	MongoMaxInIdentifiers     = 100
	FirestoreMaxBatchWrites   = 300
	FirestoreMaxInIdentifiers = 10
)

// LayoutTimeEncoder is the time layout used by the log encoders.
const LayoutTimeEncoder = "2006-01-02 15:04:05.000"
