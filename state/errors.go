package state

import "errors"

// Sentinel errors for store operations.
var (
	ErrMissingKey       = errors.New("key not present")
	ErrNotList          = errors.New("value is not a list")
	ErrEmptyKey         = errors.New("key is empty")
	ErrUnsupportedValue = errors.New("unsupported value type")
)
