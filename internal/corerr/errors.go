// Package corerr defines the typed error kinds the core produces.
package corerr

import "errors"

// Kind classifies a core error per the error-handling design.
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindNotFound
	KindPreconditionFailed
	KindTransient
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindTransient:
		return "transient"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, msgOrErr any) *Error {
	switch v := msgOrErr.(type) {
	case error:
		return &Error{Kind: kind, Op: op, Err: v}
	case string:
		return &Error{Kind: kind, Op: op, Err: errors.New(v)}
	default:
		return &Error{Kind: kind, Op: op}
	}
}

func InvalidArgument(op, msg string) *Error       { return newErr(KindInvalidArgument, op, msg) }
func NotFound(op, msg string) *Error              { return newErr(KindNotFound, op, msg) }
func PreconditionFailed(op, msg string) *Error    { return newErr(KindPreconditionFailed, op, msg) }
func Transient(op string, err error) *Error       { return newErr(KindTransient, op, err) }
func Internal(op string, err error) *Error        { return newErr(KindInternal, op, err) }
func InternalMsg(op, msg string) *Error           { return newErr(KindInternal, op, msg) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
