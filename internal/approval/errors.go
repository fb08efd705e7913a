package approval

import "errors"

var (
	// ErrNotFound indicates no request exists with the given id.
	ErrNotFound = errors.New("approval request not found")
	// ErrAlreadyProcessed indicates the request left the pending state.
	ErrAlreadyProcessed = errors.New("approval request already processed")
)
