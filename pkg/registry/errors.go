package registry

import "errors"

var (
	// ErrInvalidToken is returned when a token is not an Expo push token.
	ErrInvalidToken = errors.New("invalid expo push token")

	// ErrEmptyInterest is returned when a registration names no interest.
	ErrEmptyInterest = errors.New("empty interest")

	// ErrCorruptStore is returned when persisted data cannot be decoded.
	// It is a configuration problem and is not retried.
	ErrCorruptStore = errors.New("corrupt token store")
)
