// Package mongo implements the repository backend contract against
// MongoDB: server-evaluated update operators, ordered bulk upserts with
// per-op outcome reporting, chunked membership predicates, and
// multi-statement transactions.
package mongo

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/forbearing/docrepo/config"
	"github.com/forbearing/docrepo/logger"
	"github.com/forbearing/docrepo/types"
	"github.com/forbearing/docrepo/types/consts"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const transactionMaxRetries = 3

var ErrInvalidSessionHandle = errors.New("session handle is not a *mongo.Session")

// Backend implements types.Backend over a mongo collection. The client and
// collection are externally owned; the backend never closes them.
type Backend struct {
	client *mongo.Client
	coll   *mongo.Collection
	sess   *mongo.Session
}

var _ types.Backend = (*Backend)(nil)

// New wraps a collection into a repository backend.
func New(client *mongo.Client, coll *mongo.Collection) *Backend {
	return &Backend{client: client, coll: coll}
}

// Dial builds a mongo client from config.App.Mongo. The caller owns the
// returned client.
func Dial(ctx context.Context) (*mongo.Client, error) {
	cfg := config.App.Mongo
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize)
	if len(cfg.Username) > 0 {
		opts = opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongo")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "failed to ping mongo")
	}
	return client, nil
}

func (b *Backend) Name() string { return "mongo" }

func (b *Backend) Capabilities() types.Capabilities {
	return types.Capabilities{
		SliceOnPush:      true,
		ServerTimestamp:  true,
		MaxBatchWrites:   consts.MongoMaxBatchWrites,
		MaxInIdentifiers: consts.MongoMaxInIdentifiers,
	}
}

func (b *Backend) GenerateID() string { return bson.NewObjectID().Hex() }

func (b *Backend) Raw() any { return b.coll }

// Health checks connectivity against the primary.
func (b *Backend) Health(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

// WithSession returns a sibling backend whose operations run inside the
// given *mongo.Session. An unusable handle yields the receiver unchanged.
func (b *Backend) WithSession(handle any) types.Backend {
	sess, ok := handle.(*mongo.Session)
	if !ok || sess == nil {
		logger.Mongo.Warnw("invalid session handle, expect *mongo.Session")
		return b
	}
	return &Backend{client: b.client, coll: b.coll, sess: sess}
}

// ctx returns the operation context, bound to the active session when one
// is set.
func (b *Backend) ctx(ctx context.Context) context.Context {
	if b.sess != nil {
		return mongo.NewSessionContext(ctx, b.sess)
	}
	return ctx
}

// RunTransaction executes fn inside a multi-statement transaction, bound to
// a fresh session. Transient transaction errors are retried with
// exponential backoff; errors returned by fn abort and roll back.
func (b *Backend) RunTransaction(ctx context.Context, fn func(tx types.Backend) error) error {
	sess, err := b.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "failed to start session")
	}
	defer sess.EndSession(ctx)

	bound := &Backend{client: b.client, coll: b.coll, sess: sess}
	sctx := mongo.NewSessionContext(ctx, sess)

	attempt := func() error {
		if err := sess.StartTransaction(); err != nil {
			return backoff.Permanent(err)
		}
		if err := fn(bound); err != nil {
			_ = sess.AbortTransaction(sctx)
			return backoff.Permanent(err)
		}
		if err := sess.CommitTransaction(sctx); err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
	), transactionMaxRetries), ctx)
	if err := backoff.Retry(attempt, bo); err != nil {
		logger.Mongo.WithPhase(consts.PHASE_TRANSACTION, b.coll.Name()).Warnw("transaction failed", "error", err)
		return err
	}
	return nil
}

// isTransient reports whether the server labeled the error retryable.
func isTransient(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
