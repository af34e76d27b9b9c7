// Package firestore implements the repository backend contract against
// Cloud Firestore: server-evaluated field operators, atomic write batches,
// chunked membership predicates, and single-attempt transactions.
//
// Firestore has no slice-on-append; the bounded trace strategy is refused
// at repository construction against this backend.
package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/config"
	"github.com/forbearing/docrepo/logger"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"github.com/forbearing/docrepo/util"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrInvalidTransactionHandle = errors.New("session handle is not a *firestore.Transaction")

// Backend implements types.Backend over a firestore collection. The client
// and collection are externally owned; the backend never closes them.
type Backend struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
	tx     *firestore.Transaction
}

var _ types.Backend = (*Backend)(nil)

// New wraps a collection into a repository backend.
func New(client *firestore.Client, coll *firestore.CollectionRef) *Backend {
	return &Backend{client: client, coll: coll}
}

// Dial builds a firestore client from config.App.Firestore. The caller
// owns the returned client.
func Dial(ctx context.Context) (*firestore.Client, error) {
	cfg := config.App.Firestore
	if len(cfg.ProjectID) == 0 {
		return nil, errors.New("firestore project id is required")
	}
	var opts []option.ClientOption
	if len(cfg.CredentialsFile) > 0 {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.DatabaseID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create firestore client")
	}
	return client, nil
}

func (b *Backend) Name() string { return "firestore" }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SliceOnPush:      false,
		ServerTimestamp:  true,
		MaxBatchWrites:   consts.FirestoreMaxBatchWrites,
		MaxInIdentifiers: consts.FirestoreMaxInIdentifiers,
	}
}

func (b *Backend) GenerateID() string { return util.AutoID() }

func (b *Backend) Raw() any { return b.coll }

// Health reads a document that should not exist; NotFound means the
// service answered.
func (b *Backend) Health(ctx context.Context) error {
	_, err := b.client.Collection("_health").Doc("ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// WithSession returns a sibling backend whose operations run inside the
// given *firestore.Transaction. An unusable handle yields the receiver
// unchanged.
func (b *Backend) WithSession(handle any) types.Backend {
	tx, ok := handle.(*firestore.Transaction)
	if !ok || tx == nil {
		logger.Firestore.Warnw("invalid session handle, expect *firestore.Transaction")
		return b
	}
	return &Backend{client: b.client, coll: b.coll, tx: tx}
}

// RunTransaction executes fn inside a single-attempt firestore
// transaction. Errors returned by fn roll the transaction back.
func (b *Backend) RunTransaction(ctx context.Context, fn func(tx types.Backend) error) error {
	err := b.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		return fn(&Backend{client: b.client, coll: b.coll, tx: tx})
	}, firestore.MaxAttempts(1))
	if err != nil {
		logger.Firestore.WithPhase(consts.PHASE_TRANSACTION, b.coll.ID).Warnw("transaction failed", "error", err)
	}
	return err
}
