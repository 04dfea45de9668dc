package chat

import "errors"

var (
	// ErrCorporationNotFound aborts a guest send before any
	// persistence: a message cannot attach to an unknown tenant.
	ErrCorporationNotFound = errors.New("corporation not found")

	// ErrChatNotFound is returned for operations against a chat UUID
	// with no row and no way to create one.
	ErrChatNotFound = errors.New("chat not found")
)
