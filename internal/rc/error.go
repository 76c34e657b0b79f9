package rc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/netmount/internal/apperr"
)

// Error is an error payload returned by the backend.
type Error struct {
	Status  int            `json:"status"`
	Path    string         `json:"path"`
	Message string         `json:"error"`
	Input   map[string]any `json:"input,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rc: %s: status %d: %s", e.Path, e.Status, e.Message)
}

// IsNotFound reports whether err is a backend answer saying the addressed
// storage, file or directory does not exist.
func IsNotFound(err error) bool {
	var rcErr *Error
	if !errors.As(err, &rcErr) {
		return false
	}
	if rcErr.Status == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(rcErr.Message)
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "didn't find section") ||
		strings.Contains(msg, "doesn't exist")
}

// IsRejection reports whether err carries a backend error payload, as
// opposed to a failure to complete the exchange at all.
func IsRejection(err error) bool {
	var rcErr *Error
	return errors.As(err, &rcErr)
}

// Classify tags err with the application taxonomy: ErrBackendRejected for
// backend error payloads, ErrBackendCall for everything else.
func Classify(err error) error {
	if IsRejection(err) {
		return fmt.Errorf("%w: %w", apperr.ErrBackendRejected, err)
	}
	return fmt.Errorf("%w: %w", apperr.ErrBackendCall, err)
}
