package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// Kind is the category of a store error.
type Kind string

const (
	KindConnection Kind = "connection"
	KindValidation Kind = "validation"
	KindConstraint Kind = "constraint"
	KindSchema     Kind = "schema"
	KindClosed     Kind = "closed"
	KindTimeout    Kind = "timeout"
	// KindBackend covers backend failures outside the other kinds, such as a full
	// disk or an internal server error.
	KindBackend Kind = "backend"
)

var (
	ErrConnection = errors.New("connection error")
	ErrValidation = errors.New("validation error")
	ErrConstraint = errors.New("constraint violation")
	ErrSchema     = errors.New("schema conflict")
	ErrClosed     = errors.New("client is closed")
	ErrTimeout    = errors.New("operation timed out")
	ErrBackend    = errors.New("backend error")
)

var kindSentinels = map[Kind]error{
	KindConnection: ErrConnection,
	KindValidation: ErrValidation,
	KindConstraint: ErrConstraint,
	KindSchema:     ErrSchema,
	KindClosed:     ErrClosed,
	KindTimeout:    ErrTimeout,
	KindBackend:    ErrBackend,
}

// Error is returned by every operation of the package. It matches the sentinel of its
// kind with errors.Is and unwraps to the backend error, if any.
type Error struct {
	Kind  Kind
	Op    string
	Table string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	prefix := e.Op
	if e.Table != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.Table)
	}

	msg := e.Msg
	if msg == "" {
		msg = kindSentinels[e.Kind].Error()
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, op, table, msg string) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Msg: msg}
}

func wrapError(kind Kind, op, table string, err error) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Err: err}
}

func validationErrorf(op, table, format string, args ...any) *Error {
	return newError(KindValidation, op, table, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of err, or "" when err is not a store error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// classify maps backend errors onto the taxonomy. translate is the dialect specific
// classifier and may return "" for errors it does not recognise.
func classify(op, table string, err error, translate func(error) Kind) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindTimeout, op, table, err)
	}

	if translate != nil {
		if kind := translate(err); kind != "" {
			return wrapError(kind, op, table, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		if netErr != nil && netErr.Timeout() {
			return wrapError(KindTimeout, op, table, err)
		}
		return wrapError(KindConnection, op, table, err)
	}

	return wrapError(KindBackend, op, table, err)
}
