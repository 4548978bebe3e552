package errutil

import (
	"context"
	"errors"
)

// FromError normalises any error into a BaseError so the HTTP layer can
// render it with a stable shape.
func FromError(err error) BaseError {
	var base BaseError
	if errors.As(err, &base) {
		return base
	}

	if errors.Is(err, context.Canceled) {
		return BaseError{Code: StatusClientClosedRequest, Message: "request canceled", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return BaseError{Code: StatusGatewayTimeout, Message: "request timed out", Err: err}
	}

	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return BaseError{Code: coder.Status(), Message: err.Error(), Err: err}
	}

	return BaseError{Code: StatusInternal, Message: "internal server error", Err: err}
}

// HTTPStatus returns the wire status for err.
func HTTPStatus(err error) int {
	return FromError(err).Code.HTTPStatus()
}
