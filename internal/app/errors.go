package app

import "errors"

var (
	// ErrConversationNotFound covers both a missing conversation and one
	// owned by another user, so existence is never leaked across owners.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrUpstream indicates the answer engine failed or returned
	// unusable output; the cause is attached to the error message.
	ErrUpstream = errors.New("answer engine failure")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailExists              = errors.New("email already exists")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrInvalidRole              = errors.New("invalid message role")
)
