// Package httperror implements the single serializable error type used
// by every pipeline stage (spec §7), grounded on the teacher's
// modules/caddyhttp/errors.go HandlerError.
package httperror

import (
	"errors"
	"fmt"
	weakrand "math/rand"
	"path"
	"runtime"
	"strings"
)

// Kind classifies an Error per the six kinds enumerated in spec §7.
type Kind string

const (
	KindBadRequest     Kind = "bad_request"
	KindForbidden      Kind = "forbidden"
	KindNotResolvable  Kind = "not_resolvable"
	KindGatewayTimeout Kind = "gateway_timeout"
	KindUpstreamError  Kind = "upstream_error"
	KindInternal       Kind = "internal"
)

// Error is a serializable representation of an error from within the
// pipeline (spec §7). An empty Kind means unclassified; New fills it
// in when it is given an existing *Error.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error

	ID    string
	Trace string
}

// New is the convenient constructor used by every pipeline stage to
// populate the essential fields of an Error: if err is itself an
// *Error, missing fields are filled in rather than double-wrapping.
func New(kind Kind, statusCode int, err error) *Error {
	const idLen = 9
	var existing *Error
	if errors.As(err, &existing) {
		if existing.ID == "" {
			existing.ID = randString(idLen)
		}
		if existing.Trace == "" {
			existing.Trace = trace()
		}
		if existing.StatusCode == 0 {
			existing.StatusCode = statusCode
		}
		if existing.Kind == "" {
			existing.Kind = kind
		}
		return existing
	}
	return &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Err:        err,
		ID:         randString(idLen),
		Trace:      trace(),
	}
}

func (e *Error) Error() string {
	var s string
	if e.ID != "" {
		s += fmt.Sprintf("{id=%s}", e.ID)
	}
	if e.Trace != "" {
		s += " " + e.Trace
	}
	if e.StatusCode != 0 {
		s += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return strings.TrimSpace(s)
}

// Unwrap exposes the wrapped error to the errors package.
func (e *Error) Unwrap() error { return e.Err }

func randString(n int) string {
	const dict = "abcdefghijkmnpqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		//nolint:gosec
		b[i] = dict[weakrand.Int63()%int64(len(dict))]
	}
	return string(b)
}

func trace() string {
	if pc, file, line, ok := runtime.Caller(2); ok {
		filename := path.Base(file)
		pkgAndFuncName := path.Base(runtime.FuncForPC(pc).Name())
		return fmt.Sprintf("%s (%s:%d)", pkgAndFuncName, filename, line)
	}
	return ""
}
