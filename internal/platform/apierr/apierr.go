package apierr

import (
	"fmt"
	"net/http"

	"github.com/yungbote/draftsync-backend/internal/domain/aggregates"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a domain error onto an HTTP status.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	code := aggregates.CodeOf(err)
	if code == "" {
		code = aggregates.CodeInternal
	}
	return New(StatusFor(code), string(code), err)
}

func StatusFor(code aggregates.ErrorCode) int {
	switch code {
	case aggregates.CodeValidation:
		return http.StatusUnprocessableEntity
	case aggregates.CodeNotFound:
		return http.StatusNotFound
	case aggregates.CodeConflict:
		return http.StatusConflict
	case aggregates.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case aggregates.CodeRemoteUnavailable, aggregates.CodeRetryable:
		return http.StatusServiceUnavailable
	case aggregates.CodePartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}
