package connection

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for the registry. These provide consistent, checkable
// errors for the failure modes callers are expected to branch on.
var (
	// ErrNotConnected is returned when an identity is absent from the
	// registry at send, lookup, or removal time.
	ErrNotConnected = errors.New("player is not connected")

	// ErrMissingContext is returned by PersonalizedBroadcast when a
	// registered identity has no entry in the caller-supplied context
	// mapping. The caller is responsible for keeping the two in sync.
	ErrMissingContext = errors.New("no recipient context for connected player")

	// ErrInvalidPayload is returned when a payload is neither text nor a
	// JSON-serializable record.
	ErrInvalidPayload = errors.New("payload is not text or a serializable record")
)

// TransportError wraps a channel write or close failure with the
// identity it happened on, so that callers of the fan-out operations can
// tell which recipients went undelivered.
type TransportError struct {
	Identity uuid.UUID
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure for player %s: %v", e.Identity, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailedIdentities extracts the identities of all TransportErrors inside
// err, including those joined by a fan-out operation.
func FailedIdentities(err error) []uuid.UUID {
	var ids []uuid.UUID
	collectFailed(err, &ids)
	return ids
}

func collectFailed(err error, ids *[]uuid.UUID) {
	if err == nil {
		return
	}
	// errors.As stops at the first match, so walk joined errors manually.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			collectFailed(inner, ids)
		}
		return
	}
	var te *TransportError
	if errors.As(err, &te) {
		*ids = append(*ids, te.Identity)
	}
}
