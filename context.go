package multident

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/iov-one/multident/errors"
)

// Context is just a local alias, so that all packages can depend on
// this one and do not need to import the stdlib package explicitly.
type Context = context.Context

type contextKey int

const (
	contextKeyTime contextKey = iota
	contextKeyHeight
	contextKeyLogger
)

// DefaultLogger is used for all context that have not set anything
// themselves
var DefaultLogger = log.NewNopLogger()

// WithBlockTime sets the current wall clock as declared by the ledger
// for the transaction being processed. This must be set exactly once,
// before the core is called.
func WithBlockTime(ctx Context, t UnixMillis) Context {
	return context.WithValue(ctx, contextKeyTime, t)
}

// BlockTime returns the current time as declared by the ledger. The
// second return value is false when the time was never set.
func BlockTime(ctx Context) (UnixMillis, bool) {
	t, ok := ctx.Value(contextKeyTime).(UnixMillis)
	return t, ok
}

// MustBlockTime returns the ledger time or an ErrHuman when the
// surrounding layer forgot to provide one. All expiration and
// timestamping logic requires it.
func MustBlockTime(ctx Context) (UnixMillis, error) {
	t, ok := BlockTime(ctx)
	if !ok {
		return 0, errors.Wrap(errors.ErrHuman, "block time not set")
	}
	return t, nil
}

// WithHeight sets the block height for the transaction being processed.
func WithHeight(ctx Context, height int64) Context {
	return context.WithValue(ctx, contextKeyHeight, height)
}

// GetHeight returns the block height or false when not set.
func GetHeight(ctx Context) (int64, bool) {
	h, ok := ctx.Value(contextKeyHeight).(int64)
	return h, ok
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx Context, logger log.Logger) Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

// GetLogger returns the logger attached to the context, falling back to
// DefaultLogger.
func GetLogger(ctx Context) log.Logger {
	if logger, ok := ctx.Value(contextKeyLogger).(log.Logger); ok {
		return logger
	}
	return DefaultLogger
}

// WithLogInfo accepts keyvalue pairs, and returns another context like
// this, after passing all the keyvals to the Logger
func WithLogInfo(ctx Context, keyvals ...interface{}) Context {
	return WithLogger(ctx, log.With(GetLogger(ctx), keyvals...))
}

// IsExpired returns true if the given expiration is in the past as
// compared to the "now" declared for the transaction. A zero expiration
// never expires. Expiration is exclusive, a value equal to the current
// time is still valid.
func IsExpired(ctx Context, t UnixMillis) (bool, error) {
	if t.IsZero() {
		return false, nil
	}
	now, err := MustBlockTime(ctx)
	if err != nil {
		return false, err
	}
	return now > t, nil
}
