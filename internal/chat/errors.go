package chat

import "errors"

// Engine-level categorical errors. Store-level categories (not found, name
// taken, membership, forbidden) live next to the stores; together they form
// the full vocabulary the transport acks failures with. No failure leaves
// state modified.
var (
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrEmptyContent      = errors.New("empty message content")
	ErrDifferentInstance = errors.New("user is connected to a different instance")
	ErrTargetRequired    = errors.New("conversation target required")
)
