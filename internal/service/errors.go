package service

import "errors"

// Error taxonomy shared by every core operation. Handlers translate these
// into transport responses; the services only ever return one of them (or a
// wrapped internal error).
var (
	// ErrInvalidArgument indicates malformed input, e.g. a bad budget range
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the referenced job, bid or user is absent
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller lacks ownership or role for the action
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the operation is not legal for the current
	// status, e.g. accepting a non-pending bid
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a uniqueness violation: a duplicate bid, or a
	// second acceptance on the same job
	ErrConflict = errors.New("conflict")
)
