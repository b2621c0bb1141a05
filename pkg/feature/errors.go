package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrInvalidFlag indicates that the provided flag parameters are invalid.
	ErrInvalidFlag = errors.New("invalid feature flag parameters")

	// ErrInvalidRegistry indicates a registry source that cannot be parsed.
	ErrInvalidRegistry = errors.New("invalid feature registry")

	// ErrOverridesDisabled indicates an override mutation outside the development environment.
	// Mutations are ignored in that case; the error is only reported in logs.
	ErrOverridesDisabled = errors.New("feature overrides are only available in development")

	// ErrInvalidStorageKey indicates a storage key that cannot be persisted.
	ErrInvalidStorageKey = errors.New("invalid override storage key")

	// ErrOperationFailed indicates a general failure during an operation.
	ErrOperationFailed = errors.New("feature operation failed")
)
