package impl

import "errors"

var (
	ErrEmptyPassword  = errors.New("empty password")
	ErrMalformedHash  = errors.New("malformed password hash")
	ErrSigningKeySize = errors.New("signing key must be at least 32 bytes")
)
