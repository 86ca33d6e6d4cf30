package store

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultNamespace = "public"
)

// Option configures a client at Open.
type Option func(o *option)

type option struct {
	logger    *log.Logger
	timeout   time.Duration
	namespace string
	schema    *Schema
}

func defaultOptions() *option {
	return &option{
		logger:    log.New(io.Discard),
		timeout:   DefaultTimeout,
		namespace: DefaultNamespace,
	}
}

// WithLogger sets the logger used for lifecycle events and, at debug level, for
// every generated statement.
func WithLogger(logger *log.Logger) Option {
	return func(o *option) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimeout bounds every operation, including the initial ping. Expiry surfaces as
// ErrTimeout. A non-positive value disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *option) {
		o.timeout = d
	}
}

// WithNamespace sets the Postgres schema used for tables without a Namespace.
func WithNamespace(name string) Option {
	return func(o *option) {
		o.namespace = name
	}
}

// WithSchema registers table definitions at Open without creating them.
func WithSchema(s Schema) Option {
	return func(o *option) {
		o.schema = &s
	}
}

// QueryOption configures a single operation.
type QueryOption func(o *queryOption)

type queryOption struct {
	Tx Transaction
}

// WithTransaction runs the operation inside tx instead of an implicit transaction.
// The operation does not commit; the caller does.
func WithTransaction(tx Transaction) QueryOption {
	return func(o *queryOption) {
		o.Tx = tx
	}
}

func applyQueryOptions(options []QueryOption) *queryOption {
	opt := &queryOption{}
	for _, op := range options {
		op(opt)
	}
	return opt
}
