package types

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame          = errors.New("malformed frame")
	ErrUnknownEnumerationValue = errors.New("unknown enumeration value")
	ErrInvalidParameter        = errors.New("invalid parameter")
	ErrUnknownOperation        = errors.New("unknown operation")
	ErrMissingSubstitution     = errors.New("missing uri substitution")
	ErrMissingIdentifier       = errors.New("missing service identifier")
	ErrClientNotFound          = errors.New("client not found")

	ErrNotFound         = errors.New("not found")
	ErrNoSuchCredential = errors.New("no such credential")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStorage          = errors.New("storage read/write error")
	ErrInvalidBackend   = errors.New("invalid backend")

	ErrUpstream = errors.New("upstream error")
	ErrTimeout  = errors.New("timed out")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// UpstreamError is returned by response handlers when the upstream API answered with a
// non-2xx status. It matches ErrUpstream with errors.Is.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, body)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
