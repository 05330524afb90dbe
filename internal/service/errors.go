package service

import "errors"

// Domain errors surfaced to the HTTP layer. Handlers map these onto the
// status codes clients expect; anything not listed here comes back as a
// generic 500.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSelfRequest        = errors.New("cannot send friend request to yourself")
	ErrNotRecipient       = errors.New("only the recipient can act on this request")
	ErrNotParticipant     = errors.New("not a participant of this resource")
	ErrAlreadyAccepted    = errors.New("friend request already accepted")
	ErrEmptyContent       = errors.New("message content cannot be empty")
)
