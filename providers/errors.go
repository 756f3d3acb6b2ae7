package providers

import (
	"errors"
	"fmt"
)

// ErrNoClient signals that a handle has no backend client bound.
var ErrNoClient = errors.New("no backend client bound")

// DuplicateProviderError is returned by Registry.Register when the provider
// identity is already registered.
type DuplicateProviderError struct {
	ID string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider already registered: %s", e.ID)
}

// ProviderNotFoundError is returned by Registry lookups for an unknown
// provider identity.
type ProviderNotFoundError struct {
	ID string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("provider not found: %s", e.ID)
}

// ErrorKind classifies a provider call failure.
type ErrorKind int

const (
	// KindTransient — timeouts, 5xx, rate limits. Retried against the
	// fallback chain.
	KindTransient ErrorKind = iota
	// KindFatal — malformed request, auth failure. Aborts the chain.
	KindFatal
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if k == KindFatal {
		return "fatal"
	}
	return "transient"
}

// ProviderError wraps a failed provider call with its classification.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s model %s: %s error: %v", e.Provider, e.Model, e.Kind, e.Err)
}

// Unwrap exposes the underlying error to errors.Is/As.
func (e *ProviderError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable provider failure.
func Transient(provider, model string, err error) error {
	return &ProviderError{Provider: provider, Model: model, Kind: KindTransient, Err: err}
}

// Fatal wraps err as a non-retryable provider failure.
func Fatal(provider, model string, err error) error {
	return &ProviderError{Provider: provider, Model: model, Kind: KindFatal, Err: err}
}

// IsFatal reports whether err carries a fatal provider classification.
// Unclassified errors are treated as transient: an unknown failure against
// one backend should not stop the fallback chain.
func IsFatal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindFatal
}
