package bill

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when no bill exists for an id
	ErrNotFound = errors.New("bill not found")

	// ErrImmutable is returned when an employee tries to change a bill that
	// was already submitted or reviewed
	ErrImmutable = errors.New("bill can no longer be changed")

	// ErrInvalidExtension is returned for attachments that are not jpg, jpeg or png
	ErrInvalidExtension = errors.New("attachment must be a jpg, jpeg or png file")
)

// ValidationError reports user-correctable problems, keyed by form field
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return e.Err.Error()
		}
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StatusCode maps store errors to the HTTP status used by the API
func StatusCode(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrImmutable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
