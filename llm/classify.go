package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"syscall"
)

// Classify maps any error returned by a provider onto the closed taxonomy.
// Errors that already carry a kind keep it. The provider's *Error may be
// shared between workers, so it is copied rather than modified.
func Classify(err error, provider string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		cp := *e
		if cp.Provider == "" {
			cp.Provider = provider
		}
		return &cp
	}

	kind := KindUnknown
	msg := "unclassified oracle error"

	var (
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind, msg = KindTimeout, "request timed out"
	case errors.Is(err, context.Canceled):
		kind, msg = KindUnknown, "request canceled"
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		kind, msg = KindDecode, "malformed oracle response"
	case errors.As(err, &netErr) && netErr.Timeout():
		kind, msg = KindTimeout, "network timeout"
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind, msg = KindConnection, "connection to oracle failed"
	case errors.As(err, &netErr):
		kind, msg = KindConnection, "connection to oracle failed"
	}

	return NewError(kind, msg).WithCause(err).WithProvider(provider)
}
