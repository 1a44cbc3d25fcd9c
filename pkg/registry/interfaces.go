// --- File: pkg/registry/interfaces.go ---
// Package registry contains the public contract of the interest registry:
// the persistence interface, the stored value type and the domain errors.
package registry

import "context"

// Repository is the persistence capability the registrar depends on.
// Any backend (file, SQL, Firestore, in-memory) can implement it.
//
// Implementations create their backing store on first use and treat a
// missing key as a normal outcome, never as an error.
type Repository interface {
	// Store adds token to the set held under interest.
	// An existing Single is promoted to a list first; duplicates are not re-added.
	// It reports whether the persistence write succeeded.
	Store(ctx context.Context, interest, token string) (bool, error)

	// Retrieve returns the raw stored value for interest.
	// found is false when the interest does not exist.
	Retrieve(ctx context.Context, interest string) (value Tokens, found bool, err error)

	// Forget removes token from interest, or the whole interest when token is "".
	// A Single (or empty list) is always removed as a whole, whatever token is.
	// It reports whether interest no longer holds token afterwards; removing a
	// token that is not in a non-empty list is a no-op and reports false.
	Forget(ctx context.Context, interest, token string) (bool, error)
}

// Registrar is the validating surface exposed to callers (HTTP API, pipeline,
// or a notification sender looking tokens up).
type Registrar interface {
	// RegisterInterest validates token and stores it under interest.
	RegisterInterest(ctx context.Context, interest, token string) (bool, error)
	// RemoveInterest removes token (or every token, when "") from interest.
	RemoveInterest(ctx context.Context, interest, token string) (bool, error)
	// GetInterests flattens the tokens of every listed interest, in order.
	GetInterests(ctx context.Context, interests []string) ([]string, error)
}
