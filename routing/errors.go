package routing

import "fmt"

// CapabilityMismatchError is returned when an explicitly requested model
// cannot satisfy a required capability. The request fails fast rather than
// being silently routed to a substitute model.
type CapabilityMismatchError struct {
	Model      string
	Capability string
}

func (e *CapabilityMismatchError) Error() string {
	return fmt.Sprintf("model %s does not support required capability %s", e.Model, e.Capability)
}

// NoEligibleProviderError is returned when no registered model satisfies the
// hard capability requirements. Unlike health exhaustion this is not
// retryable: the request cannot be served by any backend in any state.
type NoEligibleProviderError struct {
	Required []string
}

func (e *NoEligibleProviderError) Error() string {
	if len(e.Required) == 0 {
		return "no eligible provider for request"
	}
	return fmt.Sprintf("no eligible provider supports required capabilities %v", e.Required)
}

// UnknownModelError is returned when an explicitly requested model is not in
// the capability catalog or not served by any registered provider.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Model)
}
