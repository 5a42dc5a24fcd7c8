package outcome

import (
	"opgate/codec"
)

// IsSuccess reports whether status is in the 2xx range.
func IsSuccess(status uint16) bool {
	return status >= 200 && status < 300
}

// Reconcile produces the caller-facing result of one decoded body.
//
// The body is always decoded before the status is looked at, because a
// non-2xx response may explain itself in an error envelope and a 2xx response
// may still carry one:
//
//	data envelope      -> value, whatever the status (a non-2xx status is ignored)
//	error envelope     -> *ResponseError carrying the status
//	malformed, non-2xx -> *HTTPStatusError
//	malformed, 2xx     -> *ParseError
func Reconcile[T any](status uint16, env codec.Envelope[T]) (T, error) {
	var zero T
	switch env.Kind {
	case codec.KindData:
		return env.Data, nil
	case codec.KindErrors:
		return zero, &ResponseError{
			StatusCode: status,
			Code:       env.Errors.Code,
			Errors:     env.Errors.Errors,
		}
	default:
		if !IsSuccess(status) {
			return zero, &HTTPStatusError{StatusCode: status}
		}
		return zero, &ParseError{Err: env.Err}
	}
}
