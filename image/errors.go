package image

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmorgan81/getimg/internal/codec"
)

// ErrUnauthorized matches a *ServiceError whose status is 401 or 403.
var ErrUnauthorized = errors.New("unauthorized")

// DecodeError reports a response body that is not valid JSON or an image field that is not valid base64.
type DecodeError = codec.DecodeError

// TransportError reports a failure to reach the service or to read its reply.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError carries a non-success reply from the service verbatim.
type ServiceError struct {
	StatusCode int
	Body       []byte
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("getimg error: status=%d body=%s", e.StatusCode, string(e.Body))
}

func (e *ServiceError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
