package registry

import "fmt"

// DuplicateProviderError is returned when a provider id is registered
// twice. Descriptors are immutable after registration, so a duplicate
// registration is always a setup defect.
type DuplicateProviderError struct {
	ProviderID string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("resource provider %q is already registered", e.ProviderID)
}
