// Package apperr defines the error taxonomy shared by the session lifecycle
// and the collaborator stores.
//
// Every failure returned to a caller is an *Error carrying a Kind. The
// rendered message is meant to be shown to users as-is: it names the kind and,
// where one exists, the controller status code or the parse error text.
//
//	if apperr.IsKind(err, apperr.KindControllerRejected) { ... }
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindGatewayUnreachable means the outbound call never produced a response.
	KindGatewayUnreachable Kind = iota + 1
	// KindControllerRejected means the controller answered with a non-200 status.
	KindControllerRejected
	// KindMalformedResponse means the controller body did not match the expected schema.
	KindMalformedResponse
	// KindNotFound is returned by store lookups.
	KindNotFound
	// KindInvalidArgument rejects caller input before any side effect.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindGatewayUnreachable:
		return "gateway unreachable"
	case KindControllerRejected:
		return "controller rejected"
	case KindMalformedResponse:
		return "malformed response"
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrGatewayUnreachable = &Error{Kind: KindGatewayUnreachable}
	ErrControllerRejected = &Error{Kind: KindControllerRejected}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "start_session".
	Op string
	// Status is the controller status code for KindControllerRejected.
	Status int
	// Detail is free text such as the missing resource id.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindControllerRejected && e.Status != 0 {
		msg += fmt.Sprintf(": non-200 status code: %d", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target carrying
// a status also has to match the status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Status == 0 || t.Status == e.Status
}

// GatewayUnreachable wraps a transport failure.
func GatewayUnreachable(op string, err error) *Error {
	return &Error{Kind: KindGatewayUnreachable, Op: op, Err: err}
}

// ControllerRejected records a non-200 controller reply.
func ControllerRejected(op string, status int) *Error {
	return &Error{Kind: KindControllerRejected, Op: op, Status: status}
}

// MalformedResponse wraps a body parse or schema failure.
func MalformedResponse(op string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: err}
}

// NotFound reports a missing resource.
func NotFound(op, resource, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Detail: fmt.Sprintf("%s %q", resource, id)}
}

// InvalidArgument reports rejected caller input.
func InvalidArgument(op, detail string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Detail: detail}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusOf returns the controller status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
