package core

import (
	"errors"
	"fmt"
	"net/http"
)

// UnregisteredProviderError reports a lookup for a provider id that was
// never registered. It indicates a setup defect and is always propagated,
// never swallowed.
type UnregisteredProviderError struct {
	ProviderID string
}

func (e *UnregisteredProviderError) Error() string {
	if e.ProviderID == "" {
		return "no resource providers registered"
	}
	return fmt.Sprintf("resource provider %q is not registered", e.ProviderID)
}

// UnrecognizedResourceTypeError reports a graph row whose (type, kind)
// combination matches no registered provider. The offending row is dropped;
// the rest of the batch proceeds.
type UnrecognizedResourceTypeError struct {
	ResourceType string
	ResourceKind string
}

func (e *UnrecognizedResourceTypeError) Error() string {
	if e.ResourceKind != "" {
		return fmt.Sprintf("unrecognized resource type %q (kind %q)", e.ResourceType, e.ResourceKind)
	}
	return fmt.Sprintf("unrecognized resource type %q", e.ResourceType)
}

// CredentialError reports a failure to acquire a credential for a tenant.
// It is recovered locally: the tree renders a sign-in message node and
// fires the sign-in prompt side effect.
type CredentialError struct {
	TenantID string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("could not acquire credential for tenant %q: %v", e.TenantID, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// IsCredentialError reports whether err wraps a CredentialError.
func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

// QueryExecutionError reports a transport-level failure executing a graph
// query. StatusCode carries the HTTP-like status when the transport has
// one; zero otherwise.
type QueryExecutionError struct {
	StatusCode int
	Err        error
}

func (e *QueryExecutionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("query execution failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// IsRateLimited reports whether the error is a 429 from the transport.
func (e *QueryExecutionError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited reports whether err wraps a rate-limited QueryExecutionError.
func IsRateLimited(err error) bool {
	var qe *QueryExecutionError
	return errors.As(err, &qe) && qe.IsRateLimited()
}
