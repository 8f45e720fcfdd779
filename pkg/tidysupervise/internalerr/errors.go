package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Pipeline precondition failures. Every core operation fails fast with one of
// these instead of producing degenerate output.
var (
	ErrEmptyVocabulary          = errors.New("empty vocabulary")
	ErrInsufficientClasses      = errors.New("insufficient classes")
	ErrEmptyFeatureMatrix       = errors.New("empty feature matrix")
	ErrIncompatibleFeatureSpace = errors.New("incompatible feature space")
)
