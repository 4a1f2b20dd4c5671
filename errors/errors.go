// Package errors defines the error handling used across the backup client
// and server.
package errors

import (
	"bytes"
	"fmt"
	"runtime"

	"github.com/xatophi/remote-backup-pds-project/log"
)

// Error is the type that implements the error interface for this project.
// An Error value may leave some fields unset.
type Error struct {
	// Op is the operation being performed, usually the name of the method
	// or protocol call in which the error originated.
	Op string
	// Kind is the class of error, such as a transport failure or an
	// authentication failure, or Other if unknown or irrelevant.
	Kind Kind
	// Status is the HTTP status code associated with the error, when
	// Kind is HTTP. Zero if not applicable.
	Status int
	// Err is the underlying error that triggered this one, if any.
	Err error

	stack
}

var _ error = (*Error)(nil)

// Separator is the string used to separate nested errors.
var Separator = ":\n\t"

// Kind defines the kind of error this is.
type Kind uint8

// Kinds of errors, matching the taxonomy of the wire protocol: transport
// failures at a named stage, an HTTP-level failure, a malformed
// request/response, a server-side storage failure, or an auth failure.
const (
	Other    Kind = iota // Unclassified error.
	Resolve              // DNS/address resolution failure.
	Connect              // Failed to establish a connection.
	Write                // Failed writing a request.
	Read                 // Failed reading a response.
	Shutdown             // Connection closed mid-operation.
	HTTP                 // Non-{200,404} HTTP status.
	Protocol             // Malformed JSON or missing required fields.
	Storage              // Filesystem read/write failure on the server.
	Auth                 // Authentication failure.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Resolve:
		return "address resolution error"
	case Connect:
		return "connect error"
	case Write:
		return "write error"
	case Read:
		return "read error"
	case Shutdown:
		return "connection shut down"
	case HTTP:
		return "http error"
	case Protocol:
		return "protocol error"
	case Storage:
		return "storage error"
	case Auth:
		return "authentication error"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments. The type of each argument
// determines its meaning:
//
//	string
//		The operation being performed.
//	errors.Kind
//		The class of error.
//	int
//		The HTTP status code (only meaningful alongside Kind(HTTP)).
//	error
//		The underlying error that triggered this one.
//
// If Kind is not specified (or Other) and the wrapped error is itself an
// *Error, the wrapped error's Kind is promoted.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case int:
			e.Status = arg
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	if prev, ok := e.Err.(*Error); ok {
		if prev.Kind == e.Kind {
			prev.Kind = Other
		}
		if e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if e.Status == 0 {
			e.Status = prev.Status
			prev.Status = 0
		} else if prev.Status == e.Status {
			prev.Status = 0
		}
	}
	e.populateStack()
	return e
}

func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Status != 0 {
		pad(b, ": ")
		fmt.Fprintf(b, "status %d", e.Status)
	}
	if e.Err != nil {
		if prevErr, ok := e.Err.(*Error); ok {
			if !prevErr.isZero() {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	e.printStack(b)
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// isZero reports whether e has none of its fields set.
func (e *Error) isZero() bool {
	return e.Op == "" && e.Kind == Other && e.Status == 0 && e.Err == nil
}

// KindOf reports the Kind of err if it is (or wraps) an *Error, or Other.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return Other
}

// StatusOf reports the HTTP status recorded on err, or 0 if none.
func StatusOf(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return 0
}

// Is reports whether err is an *Error of the given Kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but returns a plain error so callers
// need not import both errors and fmt.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}
