package recipe

import "errors"

// Sentinel errors for gate transitions.
var (
	ErrVerificationFailed = errors.New("recipe verification failed")
	ErrInvalidTransition  = errors.New("invalid recipe gate transition")
	ErrDirectVerification = errors.New("is_verified can only be set by verification")
	ErrInvariantViolation = errors.New("recipe record violates gate invariant")
	ErrMalformedRecord    = errors.New("malformed recipe record")
)
