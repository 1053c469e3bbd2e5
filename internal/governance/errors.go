package governance

import "errors"

var (
	// ErrPermissionDenied is returned before any write when the actor's role lacks the capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation marks caller input that cannot be applied (bad field, unparseable value).
	ErrValidation = errors.New("validation failed")
	// ErrIneligible marks an operation refused by a state rule, e.g. certificate generation
	// while deliverables are outstanding or signing a fully signed certificate.
	ErrIneligible = errors.New("operation not allowed in current state")
)
