// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes returned when multi-document transactions cannot run
// (standalone server, unsupported command inside a transaction, ...).
var notSupportedCodes = map[int32]bool{
	20:  true, // IllegalOperation
	51:  true, // Illegal operation (legacy)
	263: true, // OperationNotSupportedInTransaction
}

// IsNotSupported reports whether err means the deployment cannot run
// transactions, as opposed to the transaction body failing.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "replica set"):
		return true
	case strings.Contains(msg, "transaction") && strings.Contains(msg, "session"):
		return true
	case strings.Contains(msg, "session") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "illegal operation"):
		return true
	}
	return false
}

// Run executes fn inside a multi-document transaction. Transient errors
// (write conflicts) are retried by the driver, so fn may run more than
// once and must not keep state between attempts.
//
// If the deployment cannot run transactions (a standalone dev server),
// fn is run once without a transaction and a warning is logged. The
// context fn receives then answers NoRollback with true; callers that need
// all-or-nothing behaviour on such servers must compensate themselves.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			logFallback(log, err)
			return fn(WithoutRollback(ctx))
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		logFallback(log, err)
		return fn(WithoutRollback(ctx))
	}
	return err
}

type noRollbackKey struct{}

// WithoutRollback marks ctx as running outside any transaction, so writes
// made under it stay in place when the unit of work fails.
func WithoutRollback(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRollbackKey{}, true)
}

// NoRollback reports whether ctx was marked by WithoutRollback.
func NoRollback(ctx context.Context) bool {
	v, _ := ctx.Value(noRollbackKey{}).(bool)
	return v
}

// Runner binds Run to one database so it can be handed to services.
type Runner struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewRunner returns a Runner for db.
func NewRunner(db *mongo.Database, log *zap.Logger) *Runner {
	return &Runner{DB: db, Log: log}
}

// Run executes fn in a transaction on the runner's database.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return Run(ctx, r.DB, r.Log, fn)
}

func logFallback(log *zap.Logger, err error) {
	if log == nil {
		return
	}
	log.Warn("transactions not supported by server; running without transaction", zap.Error(err))
}
