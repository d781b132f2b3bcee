package relationships

import "errors"

var (
	// ErrInvalidInput indicates a malformed, missing or self-referential identifier.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates the referenced user or friend request does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRequest indicates the pair already has a pending request or is already friends.
	ErrDuplicateRequest = errors.New("duplicate friend request")
	// ErrInvalidState indicates the request is not in a state that permits the operation.
	ErrInvalidState = errors.New("invalid friend request state")
)
