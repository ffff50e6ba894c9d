package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrConnection wraps network-level failures talking to the registry. These
// are never retried automatically; the operator re-triggers the sync.
var ErrConnection = errors.New("registry unreachable")

// ResponseError is a non-2xx answer from the registry. Validation rejections
// carry the registry's invalid-field payload for logging.
type ResponseError struct {
	StatusCode int
	Message    string
	Invalid    json.RawMessage
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry responded %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("registry responded %d", e.StatusCode)
}

// Validation reports whether the registry rejected the request payload
// rather than failing on its side.
func (e *ResponseError) Validation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}
