package profile

import (
	"errors"
	"fmt"
)

// ErrExternalService matches every *ExternalServiceError via errors.Is.
var ErrExternalService = errors.New("profile: external service error")

// Kind classifies an external failure.
type Kind string

const (
	// KindTransport covers connection failures and timeouts.
	KindTransport Kind = "transport"
	// KindStatus covers non-success HTTP statuses.
	KindStatus Kind = "status"
	// KindService covers success:false payloads and unreadable bodies.
	KindService Kind = "service"
)

// ExternalServiceError is returned for any failed call. It is never retried.
type ExternalServiceError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("profile service error: %d - %s", e.Status, e.Message)
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("profile service unreachable: %s: %v", e.Message, e.Err)
		}
		return "profile service unreachable: " + e.Message
	default:
		return "profile service error: " + e.Message
	}
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
